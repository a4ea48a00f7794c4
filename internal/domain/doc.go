// Package domain models Purple Air sensor exports and the tract-level air
// quality statistics derived from them.
//
// # Data Source
//
// Each Purple Air station is exported as four CSV files: a primary and a
// secondary dataset for each of its two laser counters (channels A and B).
// Files are hourly averages for one fixed study period.
//
// # File Name Conventions
//
//	"<name>[ B] [(inside|outside|undefined)] (<lat> <lon>) <Primary|Secondary> ..."
//	e.g. "Lakeside B (outside) (47.6 -122.3) Primary 60_minute_average 05_01_2020 11_02_2020.csv"
//
// Only channel B files carry a channel marker; anything else is channel A.
// The coordinate token is mandatory. Names are compared lowercased. Files
// without a location marker are classed undefined and their name is the text
// before the first parenthesis. See [ParseIdentity].
//
// # Columns
//
// The first column is the "created_at" timestamp, optionally suffixed with
// "UTC"; the suffix is dropped and no zone conversion is done. Vendor headers
// such as "PM2.5_ATM_ug/m3" are renamed to canonical [Field] names. Artifact
// columns (RSSI_dbm, IAQ, ADC, unnamed trailing columns) are dropped, as is any
// column outside the rename table. Older exports lack some columns; absent
// optional fields are simply missing from the [Series].
//
// # Correction Factors
//
// Each export carries particulate mass at two correction bases: CF=1 (for
// indoor use) and ATM (for outdoor use). [Sensor.Observe] chooses per field
// from a fixed sourcing table keyed by (channel, dataset kind).
//
// # AQI
//
// AQI follows the EPA PM2.5 piecewise-linear formula (see [EPABreakpoints]).
// A sensor whose AQI record is more than 10% exact zeros is presumed faulty and
// its whole AQI record is discarded.
//
// # Tract Statistics
//
// Only outdoor sensors contribute. Mean AQI resamples each sensor onto an
// hourly study grid, averages across sensors per hour, then across hours.
// Exposure is the minutes per day at or above an AQI threshold, pooled across
// sensors. Either statistic may exclude the September 2020 wildfire smoke
// episode.
package domain
