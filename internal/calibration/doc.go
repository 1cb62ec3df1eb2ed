// Package calibration fits IMU calibration parameters against GPS speed
// references.
//
// Responsibilities: principal rotation axis estimation, horizontal
// projection of rotation rates, the per-window calibration cost function and
// trajectory integration, and the minimizer abstraction used to fit it.
//
// Orientation is integrated from the gyroscope only, so within a window the
// integrated velocity is affine in the nine calibration parameters. The
// Calibrator exploits this by precomputing the parameter-independent terms
// once per window; cost and gradient evaluations are then linear in the
// number of GPS references.
package calibration
