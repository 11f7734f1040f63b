package usbmsc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"uf2flash/pkg/scsi"
)

// USB MSC Bulk-Only Transport class/subclass/protocol triple we enumerate
// against (§4.E): Mass Storage, SCSI transparent command set, Bulk-Only.
const (
	classMassStorage        = gousb.Class(0x08)
	subclassSCSITransparent = gousb.Class(0x06)
	protocolBulkOnly        = gousb.Protocol(0x50)

	getMaxLUNRequest = 0xFE

	// Standard control requests used for stall recovery (§4.E step 5,
	// §5/§7): CLEAR_FEATURE(ENDPOINT_HALT) is not exposed as a gousb
	// convenience method, so it's issued as a raw standard/endpoint
	// control transfer.
	requestClearFeature = 0x01
	featureEndpointHalt = 0x00

	defaultTimeout = 10 * time.Second
)

// DeviceInfo identifies one enumerated MSC candidate before it's opened.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Bus       int
	Address   int
}

// Closed is an MSC device discovered by Enumerate but not yet opened.
// Open() consumes it and yields an Opened value; the typestate mirrors the
// source's Closed/Opened parameterization of a single record (§9).
type Closed struct {
	info            DeviceInfo
	dev             *gousb.Device
	configNumber    int
	interfaceNumber int
	altNumber       int
}

// Info returns the identifying information discovered at enumeration time.
func (c Closed) Info() DeviceInfo { return c.info }

// Opened is a claimed MSC device with known bulk endpoints and a transfer
// timeout. An Opened value owns the device handle exclusively; Close()
// must be called on every exit path to release the interface and reset
// the handle.
type Opened struct {
	info            DeviceInfo
	dev             *gousb.Device
	config          *gousb.Config
	intf            *gousb.Interface
	epOut           *gousb.OutEndpoint
	epIn            *gousb.InEndpoint
	interfaceNumber int
	outEndpoint     byte
	inEndpoint      byte
	timeout         time.Duration
}

// Info returns the identifying information of the opened device.
func (o *Opened) Info() DeviceInfo { return o.info }

// Enumerate walks all attached USB devices and returns Closed records for
// every device that exposes at least one interface matching the
// Mass-Storage / SCSI-transparent / Bulk-Only triple (see findMSCInterface).
func Enumerate(ctx *gousb.Context) ([]Closed, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, _, _, ok := findMSCInterface(desc)
		return ok
	})
	if err != nil {
		return nil, ErrFailedToGetUsbDevices
	}

	var closed []Closed
	for _, dev := range devices {
		cfgNum, intfNum, altNum, ok := findMSCInterface(dev.Desc)
		if !ok {
			dev.Close()
			continue
		}
		closed = append(closed, Closed{
			info: DeviceInfo{
				VendorID:  uint16(dev.Desc.Vendor),
				ProductID: uint16(dev.Desc.Product),
				Bus:       dev.Desc.Bus,
				Address:   dev.Desc.Address,
			},
			dev:             dev,
			configNumber:    cfgNum,
			interfaceNumber: intfNum,
			altNumber:       altNum,
		})
	}

	return closed, nil
}

// findMSCInterface scans a device descriptor for an interface matching the
// Mass-Storage / SCSI-transparent / Bulk-Only-Transport class triple.
func findMSCInterface(desc *gousb.DeviceDesc) (cfgNumber, intfNumber, altNumber int, ok bool) {
	for cfgNum, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == classMassStorage &&
					alt.SubClass == subclassSCSITransparent &&
					alt.Protocol == protocolBulkOnly {
					return cfgNum, intf.Number, alt.Alternate, true
				}
			}
		}
	}
	return 0, 0, 0, false
}

// Open claims the Mass Storage interface and discovers its bulk endpoints,
// per §4.E's Opening algorithm: open, auto-detach, set config, locate
// endpoints, claim interface, clear halts, default 10s timeout.
func (c Closed) Open() (*Opened, error) {
	if err := c.dev.SetAutoDetach(true); err != nil {
		// Not every platform supports auto-detach; proceed regardless.
		_ = err
	}

	cfg, err := c.dev.Config(c.configNumber)
	if err != nil {
		return nil, FailedToOpenUsbDevice(err)
	}

	intf, err := cfg.Interface(c.interfaceNumber, c.altNumber)
	if err != nil {
		cfg.Close()
		return nil, FailedToClaimInterface(err)
	}

	var outAddr, inAddr int
	var haveOut, haveIn bool
	for addr, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn {
			inAddr = int(addr)
			haveIn = true
		} else {
			outAddr = int(addr)
			haveOut = true
		}
	}

	if !haveOut || !haveIn {
		intf.Close()
		cfg.Close()
		return nil, ErrNoKnownTransportMethod
	}

	epOut, err := intf.OutEndpoint(outAddr)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, FailedToClaimInterface(err)
	}

	epIn, err := intf.InEndpoint(inAddr)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, FailedToClaimInterface(err)
	}

	o := &Opened{
		info:            c.info,
		dev:             c.dev,
		config:          cfg,
		intf:            intf,
		epOut:           epOut,
		epIn:            epIn,
		interfaceNumber: c.interfaceNumber,
		outEndpoint:     byte(outAddr),
		inEndpoint:      byte(inAddr),
		timeout:         defaultTimeout,
	}

	// §4.E step 5: clear any halt condition left over from a previous
	// session before issuing the first command. Both endpoints are
	// claimed at alt setting c.altNumber (0 for every known MSC device),
	// so no separate SetAlt call is needed to reach alt 0.
	o.clearHalt(o.outEndpoint)
	o.clearHalt(o.inEndpoint)

	return o, nil
}

// clearHalt issues a standard CLEAR_FEATURE(ENDPOINT_HALT) control
// transfer against an endpoint. Errors are ignored: a device that never
// stalled will reject the request harmlessly, and a device that did stall
// needs the transfer attempted regardless of whether the request itself
// succeeds.
func (o *Opened) clearHalt(endpoint byte) {
	_, _ = o.dev.Control(
		gousb.ControlOut|gousb.ControlStandard|gousb.ControlEndpoint,
		requestClearFeature,
		featureEndpointHalt,
		uint16(endpoint),
		nil,
	)
}

// Close runs the teardown contract: release the claimed interface and
// reset the device handle, on all exit paths.
func (o *Opened) Close() error {
	if o.intf != nil {
		o.intf.Close()
	}
	if o.config != nil {
		o.config.Close()
	}
	if o.dev != nil {
		_ = o.dev.Reset()
		return o.dev.Close()
	}
	return nil
}

// Write writes buf to the bulk OUT endpoint, returning bytes transferred.
// A stalled pipe is cleared before the error is surfaced, so the next
// command on this transport starts from a known-good endpoint state
// (§5/§7's stall-recovery requirement).
func (o *Opened) Write(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	n, err := o.epOut.WriteContext(ctx, buf)
	if err != nil {
		if err == gousb.ErrorStall {
			o.clearHalt(o.outEndpoint)
		}
		return n, UsbDeviceBulkFailed(err)
	}
	return n, nil
}

// Read fills buf from the bulk IN endpoint, returning bytes transferred.
// A stalled pipe is cleared before the error is surfaced, matching Write.
func (o *Opened) Read(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	n, err := o.epIn.ReadContext(ctx, buf)
	if err != nil {
		if err == gousb.ErrorStall {
			o.clearHalt(o.inEndpoint)
		}
		return n, UsbDeviceBulkFailed(err)
	}
	return n, nil
}

// GetMaxLUN performs the class-specific GET_MAX_LUN control transfer. A
// stalled request (common for single-LUN devices) is treated as LUN 0, not
// an error.
func (o *Opened) GetMaxLUN() (uint8, error) {
	buf := make([]byte, 1)
	n, err := o.dev.Control(
		gousb.ControlIn|gousb.ControlClass|gousb.ControlInterface,
		getMaxLUNRequest,
		0,
		uint16(o.interfaceNumber),
		buf,
	)
	if err != nil {
		if err == gousb.ErrorStall {
			return 0, nil
		}
		return 0, UsbDeviceBulkFailed(err)
	}
	if n != 1 {
		return 0, nil
	}
	return buf[0], nil
}

// ExecuteCommand runs the three-phase CBW/data/CSW protocol for cmd: send
// the CBW, transfer the data phase (if any), then read and validate the
// CSW against the CBW's tag.
func (o *Opened) ExecuteCommand(tag uint32, dataLen uint32, direction scsi.Direction, cmd scsi.CommandBlock, data []byte) error {
	cbw := scsi.NewCBW(tag, dataLen, direction, cmd)
	cbwBytes := cbw.MarshalBinary()
	if _, err := o.Write(cbwBytes[:]); err != nil {
		return err
	}

	if data != nil {
		switch direction {
		case scsi.DirectionIn:
			n, err := o.Read(data)
			if err != nil {
				return err
			}
			if n != len(data) {
				return &TransportError{Code: ErrCodeUsbDeviceBulkFailed, Message: fmt.Sprintf("short data-phase read: got %d want %d", n, len(data))}
			}
		case scsi.DirectionOut:
			if _, err := o.Write(data); err != nil {
				return err
			}
		}
	}

	cswBuf := make([]byte, scsi.CSWSize)
	n, err := o.Read(cswBuf)
	if err != nil {
		return err
	}
	if n != scsi.CSWSize {
		return &TransportError{Code: ErrCodeUsbDeviceBulkFailed, Message: fmt.Sprintf("short CSW: got %d bytes", n)}
	}

	if _, err := scsi.ParseCSW(cswBuf, tag); err != nil {
		return err
	}

	return nil
}
