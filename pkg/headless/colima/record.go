package colima

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/jamesainslie/headless/pkg/headless/kvfile"
)

// Record keys.
const (
	KeyCPU       = "COLIMA_CPU"
	KeyMemory    = "COLIMA_MEMORY"
	KeyDisk      = "COLIMA_DISK"
	KeyArch      = "COLIMA_ARCH"
	KeyVMType    = "COLIMA_VM_TYPE"
	KeyUpdatedAt = "UPDATED_AT"
)

const recordHeader = "Colima VM allocation approved with `headless setup colima`.\nEdit with care; setup overwrites this file."

// DefaultRecordPath is $XDG_CONFIG_HOME/headless/colima.conf.
func DefaultRecordPath() string {
	return filepath.Join(xdg.ConfigHome, "headless", "colima.conf")
}

// Record is the operator-approved allocation, the only piece of advisor
// output that is persisted.
type Record struct {
	CPU       int
	MemoryGB  int
	DiskGB    int
	Arch      string
	VMType    string
	UpdatedAt time.Time
}

// LoadRecord reads the record at path. A missing file returns
// kvfile.ErrNotExist.
func LoadRecord(path string) (Record, error) {
	values, err := kvfile.Read(path)
	if err != nil {
		return Record{}, err
	}

	var r Record
	var errs []error
	fields := []struct {
		key string
		dst *int
	}{
		{KeyCPU, &r.CPU},
		{KeyMemory, &r.MemoryGB},
		{KeyDisk, &r.DiskGB},
	}
	for _, f := range fields {
		n, err := values.Int(f.key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.dst = n
	}
	if err := errors.Join(errs...); err != nil {
		return Record{}, fmt.Errorf("reading %s: %w", path, err)
	}

	r.Arch = values[KeyArch]
	r.VMType = values[KeyVMType]
	if ts := values[KeyUpdatedAt]; ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			r.UpdatedAt = t
		}
	}
	return r, nil
}

// Save writes the record atomically.
func (r Record) Save(path string) error {
	values := kvfile.Values{
		KeyCPU:       fmt.Sprint(r.CPU),
		KeyMemory:    fmt.Sprint(r.MemoryGB),
		KeyDisk:      fmt.Sprint(r.DiskGB),
		KeyArch:      r.Arch,
		KeyVMType:    r.VMType,
		KeyUpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	return kvfile.Write(path, recordHeader, values)
}

// Spec turns the record into start arguments for profile.
func (r Record) Spec(profile string, rosetta bool) Spec {
	return Spec{
		Profile:  profile,
		CPU:      r.CPU,
		MemoryGB: r.MemoryGB,
		DiskGB:   r.DiskGB,
		Arch:     r.Arch,
		VMType:   r.VMType,
		Rosetta:  rosetta,
	}
}
