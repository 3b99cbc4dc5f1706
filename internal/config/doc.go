// Package config provides configuration loading, merging, and validation
// for clinic-keeper.
//
// Configuration is assembled from multiple sources; earlier sources win for
// non-zero fields:
//  1. Command-line flag overrides
//  2. Environment variables (a .env file is loaded first, without
//     overwriting variables already set)
//  3. JSON config file
//  4. Built-in defaults
//
// The main entry point is [GetClientConfig].
package config
