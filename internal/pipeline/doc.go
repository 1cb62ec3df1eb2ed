// Package pipeline runs the sliding-window calibration over a recording.
//
// The GPS stream is cut into overlapping windows. Each window gets its own
// calibration fit; the integrated speeds of all windows are pooled per
// merged IMU event, averaged and finally smoothed into one velocity series.
package pipeline
