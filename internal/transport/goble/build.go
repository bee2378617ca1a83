package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/gattsrv/internal/gatt"
)

// cccdUUID is generated by go-ble for every notifying characteristic.
var cccdUUID = ble.UUID16(0x2902)

// bleUUID converts a tree UUID to its go-ble form.
func bleUUID(u gatt.UUID) (ble.UUID, error) {
	if u.Is16Bit() {
		return ble.UUID16(u.Uint16()), nil
	}
	b, err := ble.Parse(u.Full())
	if err != nil {
		return nil, fmt.Errorf("invalid UUID %s: %w", u, err)
	}
	return b, nil
}

// properties maps capability tags to ATT characteristic property bits.
// Link security requirements have no property bit; they map to plain read or write.
func properties(f gatt.Flags) (props ble.Property) {
	for _, tag := range f.Strings() {
		switch gatt.Flag(tag) {
		case gatt.FlagBroadcast:
			props |= ble.CharBroadcast
		case gatt.FlagRead:
			props |= ble.CharRead
		case gatt.FlagWriteWithoutResponse:
			props |= ble.CharWriteNR
		case gatt.FlagWrite:
			props |= ble.CharWrite
		case gatt.FlagNotify:
			props |= ble.CharNotify
		case gatt.FlagIndicate:
			props |= ble.CharIndicate
		case gatt.FlagAuthenticatedSignedWrites:
			props |= ble.CharSignedWrite
		case gatt.FlagReliableWrite, gatt.FlagWritableAuxiliaries:
			props |= ble.CharExtended
		case gatt.FlagEncryptRead, gatt.FlagEncryptAuthenticatedRead, gatt.FlagSecureRead:
			props |= ble.CharRead
		case gatt.FlagEncryptWrite, gatt.FlagEncryptAuthenticatedWrite, gatt.FlagSecureWrite:
			props |= ble.CharWrite
		}
	}
	return props
}

// buildServices converts the tree into go-ble services in declaration order.
// Every attribute with a read or write capability routes to the dispatcher
// through t; notifying characteristics register subscribers with t.
func (t *Transport) buildServices(tree *gatt.Tree) ([]*ble.Service, error) {
	var out []*ble.Service
	for _, svcNode := range tree.Services() {
		u, err := bleUUID(svcNode.UUID())
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svcNode.Path(), err)
		}
		svc := ble.NewService(u)

		for _, chrNode := range svcNode.Children() {
			if err := t.buildCharacteristic(svc, chrNode); err != nil {
				return nil, err
			}
		}
		out = append(out, svc)
	}
	return out, nil
}

func (t *Transport) buildCharacteristic(svc *ble.Service, n *gatt.Node) error {
	u, err := bleUUID(n.UUID())
	if err != nil {
		return fmt.Errorf("characteristic %s: %w", n.Path(), err)
	}
	c := svc.NewCharacteristic(u)
	props := properties(n.Flags())

	if props&ble.CharRead != 0 {
		c.HandleRead(t.serveRead(n))
	}
	if props&(ble.CharWrite|ble.CharWriteNR|ble.CharSignedWrite) != 0 {
		c.HandleWrite(t.serveWrite(n))
	}
	if props&ble.CharNotify != 0 {
		c.HandleNotify(t.serveNotify(n))
	}
	if props&ble.CharIndicate != 0 {
		c.HandleIndicate(t.serveNotify(n))
	}
	// The Handle* helpers add bits of their own; advertise exactly what was declared.
	c.Property = props

	for _, descNode := range n.Children() {
		du, err := bleUUID(descNode.UUID())
		if err != nil {
			return fmt.Errorf("descriptor %s: %w", descNode.Path(), err)
		}
		if du.Equal(cccdUUID) {
			t.logger.WithField("path", descNode.Path()).Debug("Skipping declared CCCD, go-ble provides its own")
			continue
		}
		d := c.NewDescriptor(du)
		dprops := properties(descNode.Flags())
		if dprops&ble.CharRead != 0 {
			d.HandleRead(t.serveRead(descNode))
		}
		if dprops&ble.CharWrite != 0 {
			d.HandleWrite(t.serveWrite(descNode))
		}
		d.Property = dprops
	}

	t.logger.WithFields(logrus.Fields{
		"path":  n.Path(),
		"uuid":  n.UUID().String(),
		"props": fmt.Sprintf("0x%02x", byte(props)),
	}).Debug("Characteristic exposed")
	return nil
}

// advertisedUUIDs picks the 16-bit service UUIDs that fit in one advertising
// packet next to the flags. The local name is left out of the budget since
// go-ble moves it to the scan response when the UUIDs fill the packet.
func advertisedUUIDs(services []gatt.UUID) []ble.UUID {
	const (
		packetSize = 31
		flagsField = 3
	)
	room := packetSize - flagsField - 2 // UUID list header

	var out []ble.UUID
	for _, u := range services {
		if !u.Is16Bit() {
			continue
		}
		if room < 2 {
			break
		}
		out = append(out, ble.UUID16(u.Uint16()))
		room -= 2
	}
	return out
}
