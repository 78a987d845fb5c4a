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
Package store implements the shared on-disk composite-profile store.

A store is a single recordio file holding a tree of nodes addressed by
'/'-separated paths.  Every node but one is a group; a group may also carry a
pair of equal-length integer arrays named forward and reverse (it is then a
"leaf").  One reserved top-level node, "controls", holds the set of
target-conditions that were registered as controls.

Many processes may merge into the same store concurrently.  Every
read-modify-write happens inside Store.Update, which holds an exclusive
flock(2) on the sibling "<store>.lock" file for the duration of the
transaction, loads the tree, applies the caller's mutations and atomically
replaces the file.  Expensive work (loading coverage, summing profiles) is
expected to happen before Update is called.

The key order of leaf paths is fixed per store by a Layout, which is recorded
in the file header.
*/
package store
