// Command rawbids reorganizes scanner exports into a BIDS rawdata tree. It
// discovers subject sessions under sourcedata, converts DICOM series with
// dcm2niix, writes behavioral events and physio recordings into place, and
// links fieldmaps to the functional runs they correct.
package main
