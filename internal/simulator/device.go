package simulator

import "strconv"

// DeviceID names a simulated device. The set of devices is fixed for the
// lifetime of a run.
type DeviceID string

// NumberedDevices returns the IDs "1".."n" in publish order.
func NumberedDevices(n int) []DeviceID {
	if n <= 0 {
		return nil
	}
	ids := make([]DeviceID, n)
	for i := range ids {
		ids[i] = DeviceID(strconv.Itoa(i + 1))
	}
	return ids
}
