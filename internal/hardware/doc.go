// Package hardware abstracts the alcohol sensor input and the ignition relay
// output.
//
// The GPIO path uses periph.io with BCM pin numbers. When the host drivers or
// the pins are unavailable (a laptop, a container, a missing permission), Open
// falls back to an in-memory Simulator whose sensor flag can be flipped from
// the web page.
package hardware
