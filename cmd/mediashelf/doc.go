// Command mediashelf checks media files in from an inbox directory, archives
// them under canonical identifiers, and maintains the catalog that the
// playlist, listing endpoint, and removable volume tooling read from.
package main
