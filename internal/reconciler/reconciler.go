// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package reconciler merges locally cached patient fields with server
// reservation records into one display view.
//
// Precedence is strict and evaluated per record:
//
//  1. A local record with a phone number wins field by field; missing
//     fields fall back to the server record's flat fields, then to its
//     nested user object.
//  2. A server record carrying flat full_name or phone_number (a manual
//     reservation seen from another device) is used as is.
//  3. Anything else is a server-originated reservation; every field is
//     searched across the nested user object first and the flat record last.
//
// Within a tier each field is resolved by an ordered list of [Accessor]s and
// the first non-empty value wins.
package reconciler

import (
	"strings"

	"github.com/MKhiriev/clinic-keeper/models"
)

// Tier identifies which precedence rule produced a view.
type Tier int

const (
	TierLocal Tier = iota + 1
	TierManual
	TierSearched
)

func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierManual:
		return "manual"
	case TierSearched:
		return "searched"
	default:
		return "unknown"
	}
}

// Reconcile returns the patient view of server, preferring local when it
// is usable. local may be nil.
func Reconcile(server models.Reservation, local *models.LocalPatientRecord) models.PatientView {
	view, _ := Resolve(server, local)
	return view
}

// Resolve is Reconcile that also reports the tier that decided the view.
func Resolve(server models.Reservation, local *models.LocalPatientRecord) (models.PatientView, Tier) {
	if local != nil && strings.TrimSpace(local.PhoneNumber) != "" {
		return fromLocal(server, *local), TierLocal
	}

	if server.FullName.String() != "" || server.PhoneNumber.String() != "" {
		return project(server, flatFirst), TierManual
	}

	return project(server, nestedFirst), TierSearched
}

func fromLocal(server models.Reservation, local models.LocalPatientRecord) models.PatientView {
	fallback := project(server, flatFirst)
	return models.PatientView{
		FullName:    orElse(local.FullName, fallback.FullName),
		PhoneNumber: orElse(local.PhoneNumber, fallback.PhoneNumber),
		Age:         orElse(local.Age, fallback.Age),
		Gender:      orElse(local.Gender, fallback.Gender),
	}
}

func project(r models.Reservation, p fieldAccessors) models.PatientView {
	return models.PatientView{
		FullName:    firstNonEmpty(r, p.name),
		PhoneNumber: firstNonEmpty(r, p.phone),
		Age:         firstNonEmpty(r, p.age),
		Gender:      firstNonEmpty(r, p.gender),
	}
}

func orElse(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

// Lookup returns the cached record of a reservation id.
type Lookup func(id int64) (models.LocalPatientRecord, bool)

// ReconcileAll reconciles every reservation against the records returned by
// lookup. lookup may be nil.
func ReconcileAll(items []models.Reservation, lookup Lookup) []models.ReservationView {
	views := make([]models.ReservationView, 0, len(items))
	for _, r := range items {
		var local *models.LocalPatientRecord
		if lookup != nil {
			if rec, ok := lookup(r.ID); ok {
				local = &rec
			}
		}
		views = append(views, models.ReservationView{
			Reservation: r,
			Patient:     Reconcile(r, local),
		})
	}
	return views
}
