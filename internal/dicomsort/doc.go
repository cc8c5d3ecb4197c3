// Package dicomsort groups a flat scanner DICOM dump into one directory per
// series, keyed by protocol name. The converter wants one series per input
// directory; the scanner writes everything into one folder.
package dicomsort
