// Package bledb resolves Bluetooth SIG assigned numbers to human-readable
// names for the services, characteristics and descriptors this server
// commonly exposes.
package bledb

import "strings"

// sigBaseSuffix is the Bluetooth SIG base UUID without the 16-bit slot.
const sigBaseSuffix = "00001000800000805f9b34fb"

// Category is the attribute type a UUID was registered for.
type Category string

const (
	CategoryService        Category = "service"
	CategoryCharacteristic Category = "characteristic"
	CategoryDescriptor     Category = "descriptor"
)

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"1805": "Current Time Service",
	"180a": "Device Information",
	"180d": "Heart Rate",
	"180f": "Battery Service",
	"1809": "Health Thermometer",
	"181a": "Environmental Sensing",
}

var characteristics = map[string]string{
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a05": "Service Changed",
	"2a0f": "Local Time Information",
	"2a19": "Battery Level",
	"2a23": "System ID",
	"2a24": "Model Number String",
	"2a25": "Serial Number String",
	"2a26": "Firmware Revision String",
	"2a27": "Hardware Revision String",
	"2a28": "Software Revision String",
	"2a29": "Manufacturer Name String",
	"2a2b": "Current Time",
	"2a37": "Heart Rate Measurement",
	"2a38": "Body Sensor Location",
	"2a6e": "Temperature",
	"2a6f": "Humidity",
}

var descriptors = map[string]string{
	"2900": "Characteristic Extended Properties",
	"2901": "Characteristic User Description",
	"2902": "Client Characteristic Configuration",
	"2903": "Server Characteristic Configuration",
	"2904": "Characteristic Presentation Format",
	"2905": "Characteristic Aggregate Format",
}

// NormalizeUUID converts a UUID string to the internal format: lowercase, no
// dashes, braces or 0x prefix. UUIDs on the SIG base collapse to their
// 16-bit short form ("0000180d-0000-1000-8000-00805f9b34fb" -> "180d").
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.Trim(u, "{}")
	u = strings.ReplaceAll(u, "-", "")

	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes every element of uuids.
func NormalizeUUIDs(uuids []string) []string {
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = NormalizeUUID(u)
	}
	return out
}

// LookupService returns the assigned service name or "".
func LookupService(uuid string) string { return services[NormalizeUUID(uuid)] }

// LookupCharacteristic returns the assigned characteristic name or "".
func LookupCharacteristic(uuid string) string { return characteristics[NormalizeUUID(uuid)] }

// LookupDescriptor returns the assigned descriptor name or "".
func LookupDescriptor(uuid string) string { return descriptors[NormalizeUUID(uuid)] }

// Lookup searches every category. The 16-bit ranges do not overlap, so the
// first match is the only one.
func Lookup(uuid string) (name string, category Category, ok bool) {
	u := NormalizeUUID(uuid)
	if n, found := services[u]; found {
		return n, CategoryService, true
	}
	if n, found := characteristics[u]; found {
		return n, CategoryCharacteristic, true
	}
	if n, found := descriptors[u]; found {
		return n, CategoryDescriptor, true
	}
	return "", "", false
}
