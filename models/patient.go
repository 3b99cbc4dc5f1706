// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// LocalPatientRecord holds the sensitive patient fields cached on the client
// for a manually created reservation, keyed by reservation id.
type LocalPatientRecord struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Age         string `json:"age"`
	Gender      string `json:"gender"`
	Notes       string `json:"notes,omitempty"`
}

// PatientView is the display-ready projection produced by the reconciler.
// It is derived on every render and never persisted.
type PatientView struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Age         string `json:"age"`
	Gender      string `json:"gender"`
}

// ReservationView pairs a server reservation with its reconciled patient data.
type ReservationView struct {
	Reservation Reservation `json:"reservation"`
	Patient     PatientView `json:"patient"`
}
