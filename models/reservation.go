// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString is a string that also accepts JSON numbers and booleans.
// Server records are heterogeneous: age, for example, arrives either as
// "30" or as 30 depending on the endpoint that produced the record.
type FlexString string

// UnmarshalJSON implements [json.Unmarshaler].
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}

	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = FlexString(strconv.FormatBool(v))
	return nil
}

// String returns the trimmed value.
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// Account is the innermost user object of a server reservation record.
type Account struct {
	FullName    FlexString `json:"full_name,omitempty"`
	PhoneNumber FlexString `json:"phone_number,omitempty"`
	Mobile      FlexString `json:"mobile,omitempty"`
	Age         FlexString `json:"age,omitempty"`
	Gender      FlexString `json:"gender,omitempty"`
}

// ReservationUser is the nested user object of a server reservation record.
// Every field is optional; different endpoints fill different subsets.
type ReservationUser struct {
	ID            FlexString `json:"id,omitempty"`
	Account       *Account   `json:"account,omitempty"`
	FullName      FlexString `json:"full_name,omitempty"`
	Name          FlexString `json:"name,omitempty"`
	FirstName     FlexString `json:"first_name,omitempty"`
	LastName      FlexString `json:"last_name,omitempty"`
	Phone         FlexString `json:"phone,omitempty"`
	Mobile        FlexString `json:"mobile,omitempty"`
	ContactNumber FlexString `json:"contact_number,omitempty"`
	Telephone     FlexString `json:"telephone,omitempty"`
	Age           FlexString `json:"age,omitempty"`
	Gender        FlexString `json:"gender,omitempty"`
}

// Reservation is a server-sourced reservation record. Manual reservations
// carry the patient fields at the top level, server-originated ones nest
// them under User.
type Reservation struct {
	ID            int64            `json:"id"`
	Status        string           `json:"status,omitempty"`
	Date          string           `json:"date,omitempty"`
	Time          string           `json:"time,omitempty"`
	IsManual      bool             `json:"is_manual,omitempty"`
	User          *ReservationUser `json:"user,omitempty"`
	FullName      FlexString       `json:"full_name,omitempty"`
	PatientName   FlexString       `json:"patient_name,omitempty"`
	PhoneNumber   FlexString       `json:"phone_number,omitempty"`
	Phone         FlexString       `json:"phone,omitempty"`
	Mobile        FlexString       `json:"mobile,omitempty"`
	ContactNumber FlexString       `json:"contact_number,omitempty"`
	Telephone     FlexString       `json:"telephone,omitempty"`
	Age           FlexString       `json:"age,omitempty"`
	Gender        FlexString       `json:"gender,omitempty"`
}

// ManualReservationRequest is submitted by the dashboard when a doctor books
// a patient by hand. The patient fields are cached locally because the
// server may drop them from later responses.
type ManualReservationRequest struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Age         string `json:"age,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Patient returns the sensitive fields of the request as a cache record.
func (r ManualReservationRequest) Patient() LocalPatientRecord {
	return LocalPatientRecord{
		FullName:    r.FullName,
		PhoneNumber: r.PhoneNumber,
		Age:         r.Age,
		Gender:      r.Gender,
		Notes:       r.Notes,
	}
}
