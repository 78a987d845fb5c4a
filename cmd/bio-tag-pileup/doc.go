// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Given a sample's per-base stranded tag counts (.scidx) and a list of stranded
BED files, bio-tag-pileup builds one composite profile per reference name
(the strand-resolved sum of tag counts across every interval of that
reference) and merges the profiles into a shared store.

Reference names and element widths come from the BED file names
("Reb1_40bp.bed" is reference Reb1, width 40); sample ID, target and condition
come from the .scidx file name.  Both patterns can be overridden.

Many bio-tag-pileup processes, typically one per sample, may write to the same
store at once; every store update holds an exclusive lock on <store>.lock.
Replicates are numbered 1, 2, ... in the order they acquire the lock.
Controls are stored under their sample ID and their target-condition is
recorded in the store's control set.

Sample usage:
bio-tag-pileup \
    -parallelism 8 \
    12141_Reb1_i5006_BY4741_-_YPD_WT_XO_FilteredBAM.scidx \
    beds.txt \
    sacCer3.chrom.sizes \
    composite.rio

Use bio-tag-pileup-view to inspect the store.
*/
package main
