/*Package interval loads stranded genomic intervals from 6-column BED files.
  Unlike a coverage union, every interval is kept separately and in file
  order, since each one contributes its own window to a composite profile.
  Coordinates are 0-based half-open [Start0, End), stored as PosType (int32,
  which matches what BAM-derived coordinates are limited to).
*/
package interval
