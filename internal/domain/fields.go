package domain

import "strings"

// Field is a canonical measurement name.
type Field string

const (
	FieldPressure Field = "pressure"
	FieldPM1CF1   Field = "pm1_cf1"
	FieldPM25CF1  Field = "pm25_cf1"
	FieldPM10CF1  Field = "pm10_cf1"
	FieldPM1ATM   Field = "pm1_atm"
	FieldPM25ATM  Field = "pm25_atm"
	FieldPM10ATM  Field = "pm10_atm"
	FieldNPM03    Field = "n_pm03"
	FieldNPM05    Field = "n_pm05"
	FieldNPM1     Field = "n_pm1"
	FieldNPM25    Field = "n_pm25"
	FieldNPM5     Field = "n_pm5"
	FieldNPM10    Field = "n_pm10"
	FieldUptime   Field = "uptime"
	FieldTemp     Field = "temp"
	FieldRH       Field = "rh"
)

// Units attached to canonical fields.
const (
	UnitMass        = "µg/m³"
	UnitCount       = "/dl"
	UnitFahrenheit  = "°F"
	UnitHectopascal = "hPa"
	UnitPercent     = "%"
)

// fieldSpec describes one canonical field. Optional fields may be missing from
// any file vintage; the observation step fills them with NaN. Particulate mass
// fields are required only when the sourcing table selects them.
type fieldSpec struct {
	Unit     string
	Optional bool
}

var fieldSpecs = map[Field]fieldSpec{
	FieldPressure: {UnitHectopascal, true},
	FieldPM1CF1:   {UnitMass, false},
	FieldPM25CF1:  {UnitMass, false},
	FieldPM10CF1:  {UnitMass, false},
	FieldPM1ATM:   {UnitMass, false},
	FieldPM25ATM:  {UnitMass, false},
	FieldPM10ATM:  {UnitMass, false},
	FieldNPM03:    {UnitCount, true},
	FieldNPM05:    {UnitCount, true},
	FieldNPM1:     {UnitCount, true},
	FieldNPM25:    {UnitCount, true},
	FieldNPM5:     {UnitCount, true},
	FieldNPM10:    {UnitCount, true},
	FieldUptime:   {"", true},
	FieldTemp:     {UnitFahrenheit, true},
	FieldRH:       {UnitPercent, true},
}

// Unit returns the unit string for f, or "" when f has none.
func (f Field) Unit() string { return fieldSpecs[f].Unit }

// Optional reports whether f may be absent without failing an observation.
func (f Field) Optional() bool { return fieldSpecs[f].Optional }

// CountFields lists the particle-count-by-size fields in size order.
var CountFields = []Field{FieldNPM03, FieldNPM05, FieldNPM1, FieldNPM25, FieldNPM5, FieldNPM10}

// rawHeaders maps vendor CSV headers to canonical fields. Several vintages of
// the export spell the same column differently.
var rawHeaders = map[string]Field{
	"Pressure_hpa":     FieldPressure,
	"PM1.0_CF1_ug/m3":  FieldPM1CF1,
	"PM2.5_CF1_ug/m3":  FieldPM25CF1,
	"PM10.0_CF1_ug/m3": FieldPM10CF1,
	"PM1.0_ATM_ug/m3":  FieldPM1ATM,
	"PM2.5_ATM_ug/m3":  FieldPM25ATM,
	"PM10_ATM_ug/m3":   FieldPM10ATM,
	"PM10.0_ATM_ug/m3": FieldPM10ATM,
	">=0.3um/dl":       FieldNPM03,
	">=0.5um/dl":       FieldNPM05,
	">1.0um/dl":        FieldNPM1,
	">=1.0um/dl":       FieldNPM1,
	">=2.5um/dl":       FieldNPM25,
	">=5.0um/dl":       FieldNPM5,
	">=10.0um/dl":      FieldNPM10,
	"UptimeMinutes":    FieldUptime,
	"Temperature_F":    FieldTemp,
	"Humidity_%":       FieldRH,
}

// droppedHeaders are artifact columns present in some exports.
var droppedHeaders = map[string]bool{
	"RSSI_dbm": true,
	"IAQ":      true,
	"ADC":      true,
}

// canonicalField resolves a raw header. ok is false for artifact columns,
// unrecognized count columns, and anything else outside the rename table.
func canonicalField(header string) (Field, bool) {
	h := strings.TrimSpace(header)
	if h == "" || droppedHeaders[h] || strings.HasPrefix(h, "Unnamed:") {
		return "", false
	}
	f, ok := rawHeaders[h]
	return f, ok
}
