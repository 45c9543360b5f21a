package model

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// ErrMissingMachineType is returned when an Identity has no machine type.
var ErrMissingMachineType = errors.New("machine type is required")

// Identity selects which vending machine a session targets.
// It is immutable for the lifetime of a session.
type Identity struct {
	Type       string
	InstanceID int
}

// NewIdentity validates and builds an Identity.
func NewIdentity(machineType string, instanceID int) (Identity, error) {
	if machineType == "" {
		return Identity{}, ErrMissingMachineType
	}
	return Identity{Type: machineType, InstanceID: instanceID}, nil
}

// PathPrefix returns the escaped "/api/{type}/{id}" prefix shared by every controller endpoint.
func (i Identity) PathPrefix() string {
	return "/api/" + url.PathEscape(i.Type) + "/" + url.PathEscape(strconv.Itoa(i.InstanceID))
}

// Topic is the in-process bus topic carrying this machine's raw event frames.
func (i Identity) Topic() string {
	return fmt.Sprintf("vending.%s.%d.events", i.Type, i.InstanceID)
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/%d", i.Type, i.InstanceID)
}
