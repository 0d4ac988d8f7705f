// Package prediction drives the request/response lifecycle of a price
// prediction. A Renderer owns the current State (Idle, Submitting, Success or
// Failed), calls a Predictor for each submission and publishes every
// transition on a typed event bus. Each submission carries a generation
// number; a response arriving after a newer submission started is discarded
// instead of overwriting the newer state.
package prediction
