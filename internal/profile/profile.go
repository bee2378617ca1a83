// Package profile describes a GATT hierarchy in YAML and binds generic
// registry-backed handlers to it.
//
//	data:
//	  battery/level: {type: uint8, value: 78}
//	services:
//	  - name: battery
//	    uuid: "180F"
//	    characteristics:
//	      - name: level
//	        uuid: "2A19"
//	        flags: [read, notify]
//	        data: battery/level
//	        notify_interval: 10
package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/srg/gattsrv/internal/gatt"
	"github.com/srg/gattsrv/internal/registry"
)

// Data declares one named registry value.
type Data struct {
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// Descriptor is a descriptor entry.
type Descriptor struct {
	Name  string   `yaml:"name"`
	UUID  string   `yaml:"uuid"`
	Flags []string `yaml:"flags"`
	Data  string   `yaml:"data,omitempty"`
	Type  string   `yaml:"type,omitempty"`
	Value any      `yaml:"value,omitempty"`
}

// Characteristic is a characteristic entry. Data binds it to a registry name;
// without it Value is served as a constant.
type Characteristic struct {
	Name           string       `yaml:"name"`
	UUID           string       `yaml:"uuid"`
	Flags          []string     `yaml:"flags"`
	Data           string       `yaml:"data,omitempty"`
	Type           string       `yaml:"type,omitempty"`
	Value          any          `yaml:"value,omitempty"`
	NotifyInterval int          `yaml:"notify_interval,omitempty"`
	Descriptors    []Descriptor `yaml:"descriptors,omitempty"`
}

// Service is a service entry.
type Service struct {
	Name            string           `yaml:"name"`
	UUID            string           `yaml:"uuid"`
	Characteristics []Characteristic `yaml:"characteristics"`
}

// Document is a parsed profile.
type Document struct {
	Data     map[string]Data `yaml:"data"`
	Services []Service       `yaml:"services"`
}

// Load parses and validates a profile.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("profile is empty")
		}
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads the profile at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	doc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// attribute is the part shared by characteristics and descriptors.
type attribute struct {
	path  string
	kind  gatt.Kind
	flags []string
	data  string
	typ   string
	value any
}

func (a attribute) check(doc *Document) error {
	fl, err := gatt.ParseFlags(a.kind, a.flags...)
	if err != nil {
		return fmt.Errorf("%s: %w", a.path, err)
	}
	if a.data != "" {
		if _, ok := doc.Data[a.data]; !ok {
			return fmt.Errorf("%s: data %q is not declared", a.path, a.data)
		}
		if a.typ != "" || a.value != nil {
			return fmt.Errorf("%s: type and value belong to the data declaration", a.path)
		}
		return nil
	}
	if fl.Writable() {
		return fmt.Errorf("%s: writable attribute needs a data binding", a.path)
	}
	if _, err := toValue(a.typ, a.value); err != nil {
		return fmt.Errorf("%s: %w", a.path, err)
	}
	return nil
}

// Validate reports every problem the builder cannot see: unknown data names,
// bad types and values, event intervals on non-notifying characteristics.
// Structural errors (duplicates, UUIDs, capabilities) are left to the builder.
func (d *Document) Validate() error {
	var errs []error

	names := make([]string, 0, len(d.Data))
	for name := range d.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		decl := d.Data[name]
		if !knownType(typeOrDefault(decl.Type)) {
			errs = append(errs, fmt.Errorf("data %s: unknown type %q", name, decl.Type))
			continue
		}
		if _, err := toValue(decl.Type, decl.Value); err != nil {
			errs = append(errs, fmt.Errorf("data %s: %w", name, err))
		}
	}

	if len(d.Services) == 0 {
		errs = append(errs, errors.New("profile declares no services"))
	}
	for _, svc := range d.Services {
		for _, c := range svc.Characteristics {
			path := svc.Name + "/" + c.Name
			if c.Type != "" && !knownType(c.Type) {
				errs = append(errs, fmt.Errorf("%s: unknown type %q", path, c.Type))
				continue
			}
			if err := c.attribute(path).check(d); err != nil {
				errs = append(errs, err)
			}
			if c.NotifyInterval < 0 {
				errs = append(errs, fmt.Errorf("%s: notify_interval must be positive", path))
			}
			if c.NotifyInterval > 0 {
				if fl, err := gatt.ParseFlags(gatt.KindCharacteristic, c.Flags...); err == nil && !fl.Notifies() {
					errs = append(errs, fmt.Errorf("%s: notify_interval needs notify or indicate", path))
				}
			}
			for _, desc := range c.Descriptors {
				dpath := path + "/" + desc.Name
				if desc.Type != "" && !knownType(desc.Type) {
					errs = append(errs, fmt.Errorf("%s: unknown type %q", dpath, desc.Type))
					continue
				}
				if err := desc.attribute(dpath).check(d); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (c Characteristic) attribute(path string) attribute {
	return attribute{path: path, kind: gatt.KindCharacteristic, flags: c.Flags, data: c.Data, typ: c.Type, value: c.Value}
}

func (d Descriptor) attribute(path string) attribute {
	return attribute{path: path, kind: gatt.KindDescriptor, flags: d.Flags, data: d.Data, typ: d.Type, value: d.Value}
}

// Seed declares every data entry in store with its initial value.
func (d *Document) Seed(store *registry.Store) error {
	for name, decl := range d.Data {
		v, err := toValue(decl.Type, decl.Value)
		if err != nil {
			return fmt.Errorf("data %s: %w", name, err)
		}
		store.Declare(name, v)
	}
	return nil
}

// Configure declares the profile hierarchy on b. It is meant for
// server.Options.Configure and expects a document that passed Validate.
func (d *Document) Configure(b *gatt.Builder) {
	for _, svc := range d.Services {
		b.BeginService(svc.Name, svc.UUID)
		for _, c := range svc.Characteristics {
			b.BeginCharacteristic(c.Name, c.UUID, c.Flags...)
			d.bind(b, c.attribute(""), c.NotifyInterval)
			for _, desc := range c.Descriptors {
				b.BeginDescriptor(desc.Name, desc.UUID, desc.Flags...)
				d.bind(b, desc.attribute(""), 0)
				b.EndDescriptor()
			}
			b.EndCharacteristic()
		}
		b.EndService()
	}
}

func (d *Document) bind(b *gatt.Builder, a attribute, interval int) {
	fl, err := gatt.ParseFlags(a.kind, a.flags...)
	if err != nil {
		// BeginCharacteristic/BeginDescriptor already recorded it.
		return
	}

	h, err := d.handlerFor(a)
	if err != nil {
		// Validate rejects this; the attribute stays unbound.
		return
	}
	if fl.Readable() {
		b.OnRead(h)
	}
	if fl.Writable() {
		b.OnWrite(h)
	}
	if a.kind == gatt.KindCharacteristic && fl.Notifies() {
		b.OnUpdated(h)
		if interval > 0 {
			b.OnEvent(interval, nil, h)
		}
	}
}

func (d *Document) handlerFor(a attribute) (*handler, error) {
	if a.data == "" {
		v, err := toValue(a.typ, a.value)
		if err != nil {
			return nil, err
		}
		return &handler{static: v}, nil
	}
	decl, ok := d.Data[a.data]
	if !ok {
		return nil, fmt.Errorf("data %q is not declared", a.data)
	}
	like, err := toValue(decl.Type, decl.Value)
	if err != nil {
		return nil, err
	}
	return &handler{name: a.data, like: like, signed: signed(typeOrDefault(decl.Type))}, nil
}
