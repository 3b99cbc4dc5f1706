package reconciler

import (
	"strings"

	"github.com/MKhiriev/clinic-keeper/models"
)

// Accessor reads one candidate location of a field from a server record and
// returns "" when the location is absent or blank.
type Accessor func(r models.Reservation) string

// firstNonEmpty evaluates accessors in order and returns the first non-empty
// value.
func firstNonEmpty(r models.Reservation, accessors []Accessor) string {
	for _, p := range accessors {
		if v := strings.TrimSpace(p(r)); v != "" {
			return v
		}
	}
	return ""
}

func account(r models.Reservation) *models.Account {
	if r.User == nil {
		return nil
	}
	return r.User.Account
}

func accountField(get func(a *models.Account) models.FlexString) Accessor {
	return func(r models.Reservation) string {
		if a := account(r); a != nil {
			return get(a).String()
		}
		return ""
	}
}

func userField(get func(u *models.ReservationUser) models.FlexString) Accessor {
	return func(r models.Reservation) string {
		if r.User != nil {
			return get(r.User).String()
		}
		return ""
	}
}

func recordField(get func(r models.Reservation) models.FlexString) Accessor {
	return func(r models.Reservation) string {
		return get(r).String()
	}
}

func userFirstLast(r models.Reservation) string {
	if r.User == nil {
		return ""
	}
	return strings.TrimSpace(r.User.FirstName.String() + " " + r.User.LastName.String())
}

// Locations on the flat record, used by manual reservations.
var (
	flatName = []Accessor{
		recordField(func(r models.Reservation) models.FlexString { return r.FullName }),
		recordField(func(r models.Reservation) models.FlexString { return r.PatientName }),
	}
	flatPhone = []Accessor{
		recordField(func(r models.Reservation) models.FlexString { return r.PhoneNumber }),
		recordField(func(r models.Reservation) models.FlexString { return r.Phone }),
		recordField(func(r models.Reservation) models.FlexString { return r.Mobile }),
		recordField(func(r models.Reservation) models.FlexString { return r.ContactNumber }),
		recordField(func(r models.Reservation) models.FlexString { return r.Telephone }),
	}
	flatAge = []Accessor{
		recordField(func(r models.Reservation) models.FlexString { return r.Age }),
	}
	flatGender = []Accessor{
		recordField(func(r models.Reservation) models.FlexString { return r.Gender }),
	}
)

// Locations on the nested user object, used by server-originated records.
// The phone order is the contract: account.phone_number, account.mobile,
// phone, mobile, contact_number, telephone.
var (
	nestedName = []Accessor{
		accountField(func(a *models.Account) models.FlexString { return a.FullName }),
		userField(func(u *models.ReservationUser) models.FlexString { return u.FullName }),
		userField(func(u *models.ReservationUser) models.FlexString { return u.Name }),
		userFirstLast,
	}
	nestedPhone = []Accessor{
		accountField(func(a *models.Account) models.FlexString { return a.PhoneNumber }),
		accountField(func(a *models.Account) models.FlexString { return a.Mobile }),
		userField(func(u *models.ReservationUser) models.FlexString { return u.Phone }),
		userField(func(u *models.ReservationUser) models.FlexString { return u.Mobile }),
		userField(func(u *models.ReservationUser) models.FlexString { return u.ContactNumber }),
		userField(func(u *models.ReservationUser) models.FlexString { return u.Telephone }),
	}
	nestedAge = []Accessor{
		accountField(func(a *models.Account) models.FlexString { return a.Age }),
		userField(func(u *models.ReservationUser) models.FlexString { return u.Age }),
	}
	nestedGender = []Accessor{
		accountField(func(a *models.Account) models.FlexString { return a.Gender }),
		userField(func(u *models.ReservationUser) models.FlexString { return u.Gender }),
	}
)

func chain(lists ...[]Accessor) []Accessor {
	var out []Accessor
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// fieldAccessors is the ordered accessor list of every view field for one tier.
type fieldAccessors struct {
	name, phone, age, gender []Accessor
}

var (
	// flat fields first, nested user object second
	flatFirst = fieldAccessors{
		name:   chain(flatName, nestedName),
		phone:  chain(flatPhone, nestedPhone),
		age:    chain(flatAge, nestedAge),
		gender: chain(flatGender, nestedGender),
	}

	// nested user object first, flat fields second
	nestedFirst = fieldAccessors{
		name:   chain(nestedName, flatName),
		phone:  chain(nestedPhone, flatPhone),
		age:    chain(nestedAge, flatAge),
		gender: chain(nestedGender, flatGender),
	}
)
