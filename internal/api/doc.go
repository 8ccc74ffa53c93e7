// Package api serves the learning session over HTTP. It translates JSON
// requests into session controller calls, maps domain errors to status codes
// and streams generated audio clips to the frontend.
package api
