// Package motionio reads recorder JSON and NMEA logs into time series and
// writes the fitted outputs back as JSON.
//
// All file access goes through fsutil.FileSystem. Input streams must be
// non-empty and sorted by time; readers reject anything else.
package motionio
