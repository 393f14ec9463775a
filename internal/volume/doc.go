// Package volume catalogs removable media.
//
// It reads optical disc labels through lsblk, queries the drive tray with the
// CDROM_DRIVE_STATUS ioctl, listens for disc insertions on the udev netlink
// socket, and records a disc and the media files on it in the catalog's
// volumes/volume_files tables. Nothing here touches the check-in pipeline.
package volume
