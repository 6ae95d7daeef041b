package domain

// The directory types are display-ready records owned by the directory
// service. The core only reads them.

// Driver is a registered driver.
type Driver struct {
	ID      int64
	Name    string
	License string
	Phone   string
}

// Vehicle is a registered vehicle. Capacity is nil when the vehicle has no
// rated seat count on file.
type Vehicle struct {
	ID       int64
	Plate    string
	Model    string
	Capacity *int
}

// HealthUnit is a registered hospital or UBS.
type HealthUnit struct {
	ID      int64
	Name    string
	Address string
	City    string
}

// Physician is a registered attending physician.
type Physician struct {
	ID        int64
	Name      string
	CRM       string
	Specialty string
}

// Patient is a registered patient.
type Patient struct {
	ID      int64
	Name    string
	CPF     string
	Phone   string
	Address string
}
