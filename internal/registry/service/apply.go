package service

import (
	"strconv"

	"rollguard/internal/registry/models"
)

// applyCorrection copies every provided personal field onto the record.
// Blank values leave the existing value alone.
func applyCorrection(r *models.VoterRecord, f models.Fields) {
	set := func(dst *string, key string) {
		if v := f.Get(key); v != "" {
			*dst = v
		}
	}
	set(&r.Name, models.FieldName)
	set(&r.GuardianName, "guardian_name")
	set(&r.Relation, "relation")
	set(&r.Gender, "gender")
	set(&r.DateOfBirth, "dob")
	set(&r.Mobile, models.FieldMobile)
	set(&r.Email, "email")
	if age, err := strconv.Atoi(f.Get(models.FieldAge)); err == nil {
		r.Age = age
	}
	applyTransfer(r, f)
	set(&r.PartNo, "part_no")
	set(&r.SerialNo, "serial_no")
}

// applyTransfer moves the record to a new address and electoral unit.
func applyTransfer(r *models.VoterRecord, f models.Fields) {
	set := func(dst *string, key string) {
		if v := f.Get(key); v != "" {
			*dst = v
		}
	}
	set(&r.Address, models.FieldAddress)
	set(&r.Constituency, models.FieldConstituency)
	set(&r.AssemblyConstituency, "assembly_constituency")
	set(&r.PollingStation, "polling_station")
	set(&r.State, models.FieldState)
}
