// Package config loads, validates and hot-reloads the daemon configuration.
//
// Precedence is ENV > file > defaults. The YAML file is parsed strictly:
// unknown keys are rejected so a typo cannot silently disable a backup
// trigger. A Holder watches the file and swaps the active configuration only
// after the new one validates; WaitValid covers the boot case where the
// daemon starts with a broken file and has to wait for the operator to fix
// it.
package config
