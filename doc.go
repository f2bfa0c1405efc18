// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package psoc6flash drives a CMSIS-DAP USB-HID debug probe to acquire,
// erase, program and verify Infineon/Cypress PSoC6 microcontrollers over
// Serial Wire Debug. It ingests Intel-HEX or ELF32 firmware images, maps
// them onto the PSoC6 address-space regions, and executes the resulting
// program/verify sequence through the target's SROM-API call convention.
package psoc6flash
