// Package entity holds the customer record loaded from the input file.
package entity

import (
	"time"

	"github.com/tigerroll/csvload/pkg/batch/component/step/mapper"
)

// TableName is the table customers are loaded into.
const TableName = "CUSTOMER_INFO"

// Gender is the customer's declared gender.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

// Customer is one row of CUSTOMER_INFO. ID is the id field of the input file;
// the table generates its own key, so ID is not inserted.
type Customer struct {
	ID        int64      `gorm:"-"`
	FirstName string     `gorm:"column:FIRST_NAME"`
	LastName  string     `gorm:"column:LAST_NAME"`
	Email     string     `gorm:"column:EMAIL"`
	Gender    Gender     `gorm:"column:GENDER"`
	Contact   string     `gorm:"column:CONTACT"`
	Country   string     `gorm:"column:COUNTRY"`
	Dob       *time.Time `gorm:"column:DOB"`
}

// TableName implements gorm's Tabler.
func (Customer) TableName() string { return TableName }

// Attributes lists the inserted attributes in column order.
var Attributes = []string{"firstName", "lastName", "email", "gender", "contact", "country", "dob"}

// Parameters returns the bind values of c keyed by attribute name.
func Parameters(c Customer) map[string]interface{} {
	var dob interface{}
	if c.Dob != nil {
		dob = c.Dob.Format(time.DateOnly)
	}
	var gender interface{}
	if c.Gender != "" {
		gender = string(c.Gender)
	}
	return map[string]interface{}{
		"firstName": c.FirstName,
		"lastName":  c.LastName,
		"email":     c.Email,
		"gender":    gender,
		"contact":   c.Contact,
		"country":   c.Country,
		"dob":       dob,
	}
}

var genders = mapper.OneOf(string(GenderMale), string(GenderFemale), string(GenderOther))

// NewMapper returns the field bindings of the customer input layout:
// id, firstName, lastName, email, gender, contact, country, dob.
// An empty id, gender or dob maps to its zero value.
func NewMapper() *mapper.FieldSetMapper[Customer] {
	return mapper.NewFieldSetMapper(
		mapper.Bind("id", mapper.Default(mapper.Int64, 0), func(c *Customer, v int64) { c.ID = v }),
		mapper.Bind("firstName", mapper.TrimmedText, func(c *Customer, v string) { c.FirstName = v }),
		mapper.Bind("lastName", mapper.TrimmedText, func(c *Customer, v string) { c.LastName = v }),
		mapper.Bind("email", mapper.TrimmedText, func(c *Customer, v string) { c.Email = v }),
		mapper.Bind("gender", mapper.Default(genders, ""), func(c *Customer, v string) { c.Gender = Gender(v) }),
		mapper.Bind("contact", mapper.TrimmedText, func(c *Customer, v string) { c.Contact = v }),
		mapper.Bind("country", mapper.TrimmedText, func(c *Customer, v string) { c.Country = v }),
		mapper.Bind("dob", mapper.Optional(mapper.Date(time.DateOnly)), func(c *Customer, v *time.Time) { c.Dob = v }),
	)
}
