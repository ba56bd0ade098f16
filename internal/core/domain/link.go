package domain

// DeviceType is the kind of an underlying device as reported by its driver.
type DeviceType string

const (
	DeviceTypeUnknown   DeviceType = ""
	DeviceTypeVendor    DeviceType = "vendor"
	DeviceTypeEthernet  DeviceType = "ethernet"
	DeviceTypeWiFi      DeviceType = "wifi"
	DeviceTypeWiMAX     DeviceType = "wimax"
	DeviceTypeBluetooth DeviceType = "bluetooth"
	DeviceTypeGPS       DeviceType = "gps"
	DeviceTypeHSO       DeviceType = "hso"
	DeviceTypeNozomi    DeviceType = "nozomi"
	DeviceTypeHuawei    DeviceType = "huawei"
	DeviceTypeNovatel   DeviceType = "novatel"
)

// ServiceType maps a device type to the service type of its device-bound service.
// Only ethernet devices carry services of their own.
func (t DeviceType) ServiceType() ServiceType {
	if t == DeviceTypeEthernet {
		return ServiceTypeEthernet
	}
	return ServiceTypeUnknown
}

// NetworkType is the kind of an underlying network.
type NetworkType string

const (
	NetworkTypeUnknown      NetworkType = ""
	NetworkTypeVendor       NetworkType = "vendor"
	NetworkTypeWiFi         NetworkType = "wifi"
	NetworkTypeWiMAX        NetworkType = "wimax"
	NetworkTypeBluetoothPAN NetworkType = "bluetooth_pan"
	NetworkTypeBluetoothDUN NetworkType = "bluetooth_dun"
	NetworkTypeHSO          NetworkType = "hso"
)

// ServiceType maps a network type to the service type of its network-bound service.
func (t NetworkType) ServiceType() ServiceType {
	switch t {
	case NetworkTypeWiFi:
		return ServiceTypeWiFi
	case NetworkTypeWiMAX:
		return ServiceTypeWiMAX
	}
	return ServiceTypeUnknown
}
