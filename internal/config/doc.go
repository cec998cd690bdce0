// Package config defines the YAML settings of alco-lock and helpers to load,
// validate and save them.
//
// A missing settings file yields Default, so the server runs out of the box
// with the sensor on BCM 17, the relay on BCM 27 and the web page on :5000.
package config
