package wire

import (
	"errors"
	"fmt"
)

// Tag is the 4-byte ASCII identifier at the start of every datagram.
type Tag string

// Message tags.
const (
	TagRREF Tag = "RREF" // subscription request / update reply
	TagDREF Tag = "DREF" // dataref write
	TagCMND Tag = "CMND" // simulator command
	TagVEHS Tag = "VEHS" // position set
	TagRPOS Tag = "RPOS" // position request / reply
	TagBECN Tag = "BECN" // discovery beacon
)

// String returns the tag characters.
func (t Tag) String() string { return string(t) }

// Codec errors. Framing errors are local to one datagram; callers must not
// let them affect unrelated state.
var (
	ErrUnknownTag  = errors.New("unknown message tag")
	ErrBadLength   = errors.New("bad datagram length")
	ErrNameTooLong = errors.New("name exceeds field width")
	ErrBadRate     = errors.New("invalid stream rate")
)

// Field widths and fixed layout sizes in bytes.
const (
	headerLen = 5 // 4-byte tag + 1 pad byte

	// Null-padded name field widths.
	SubscribeNameLen = 400
	WriteNameLen     = 500
	CommandNameLen   = 500
	rateFieldLen     = 10

	subscribeRequestLen = headerLen + 4 + 4 + SubscribeNameLen
	updateRecordLen     = 8
	writeRequestLen     = headerLen + 4 + WriteNameLen
	commandRequestLen   = headerLen + CommandNameLen
	positionSetLen      = headerLen + 4 + 3*8 + 3*4
	positionRequestLen  = headerLen + rateFieldLen
	positionReplyLen    = headerLen + 3*8 + 10*4
	beaconMinLen        = headerLen + 2 + 4 + 4 + 4 + 2
)

// SubscribeRequest asks the host to stream a dataref at FrequencyHz updates
// per second, identified by SlotID in subsequent UpdateReply records.
// FrequencyHz 0 cancels streaming for the slot.
//
// Layout: "RREF", pad, freqHz:int32, slotId:int32, name:char[400].
type SubscribeRequest struct {
	FrequencyHz int32
	SlotID      int32
	Name        string
}

// Validate checks that the request can be encoded.
func (r *SubscribeRequest) Validate() error {
	if len(r.Name)+1 > SubscribeNameLen {
		return fmt.Errorf("%w: %d bytes, field is %d", ErrNameTooLong, len(r.Name), SubscribeNameLen)
	}
	if r.FrequencyHz < 0 {
		return fmt.Errorf("%w: %d", ErrBadRate, r.FrequencyHz)
	}
	return nil
}

// UpdateRecord is one {slot, value} pair inside an UpdateReply.
type UpdateRecord struct {
	SlotID int32
	Value  float32
}

// UpdateReply carries streamed dataref values from the host.
//
// Layout: "RREF", pad, repeated {slotId:int32, value:float32}. The payload
// after the header must be a positive multiple of 8 bytes.
type UpdateReply struct {
	Records []UpdateRecord
}

// WriteRequest sets a writable dataref to Value.
//
// Layout: "DREF", pad, value:float32, name:char[500].
type WriteRequest struct {
	Value float32
	Name  string
}

// Validate checks that the request can be encoded.
func (r *WriteRequest) Validate() error {
	if len(r.Name)+1 > WriteNameLen {
		return fmt.Errorf("%w: %d bytes, field is %d", ErrNameTooLong, len(r.Name), WriteNameLen)
	}
	return nil
}

// CommandRequest triggers a simulator command (not an aircraft control).
//
// Layout: "CMND", pad, name:char[500].
type CommandRequest struct {
	Name string
}

// Validate checks that the request can be encoded.
func (r *CommandRequest) Validate() error {
	if len(r.Name)+1 > CommandNameLen {
		return fmt.Errorf("%w: %d bytes, field is %d", ErrNameTooLong, len(r.Name), CommandNameLen)
	}
	return nil
}

// PositionSet places an aircraft at a global position and attitude.
// Latitude and longitude are double precision; the dataref equivalents are
// not writable, so this message is the only way to move an aircraft.
//
// Layout: "VEHS", pad, acIndex:int32, lat:float64, lon:float64,
// elev:float64, heading:float32, pitch:float32, roll:float32.
type PositionSet struct {
	AircraftIndex int32 // 0 is the user aircraft
	Latitude      float64
	Longitude     float64
	Elevation     float64 // meters above mean sea level
	TrueHeading   float32 // degrees, true not magnetic
	Pitch         float32 // degrees
	Roll          float32 // degrees
}

// PositionRequest asks the host to stream PositionReply datagrams at RateHz
// per second. RateHz 0 cancels the stream.
//
// Layout: "RPOS", pad, rateHz:char[10] decimal ASCII.
type PositionRequest struct {
	RateHz int32
}

// Validate checks that the rate fits the decimal field.
func (r *PositionRequest) Validate() error {
	if r.RateHz < 0 {
		return fmt.Errorf("%w: %d", ErrBadRate, r.RateHz)
	}
	return nil
}

// PositionReply is the host's position/attitude/velocity record. Field order
// matches the wire layout.
//
// Layout: "RPOS", pad, lon:float64, lat:float64, elev:float64, then ten
// float32 fields.
type PositionReply struct {
	Longitude float64 // degrees
	Latitude  float64 // degrees
	Elevation float64 // meters above mean sea level
	HeightAGL float32 // meters above terrain
	Pitch     float32 // degrees
	Heading   float32 // degrees, true
	Roll      float32 // degrees
	VX        float32 // m/s east (OpenGL x axis)
	VY        float32 // m/s up (OpenGL y axis)
	VZ        float32 // m/s south (OpenGL z axis)
	RollRate  float32 // rad/s
	PitchRate float32 // rad/s
	YawRate   float32 // rad/s
}

// Beacon is the discovery announcement a simulator host multicasts.
//
// Layout: "BECN", pad, versionMajor:uint8, versionMinor:uint8, hostId:int32,
// versionNumber:int32, role:uint32, port:uint16, computerName null-terminated.
type Beacon struct {
	VersionMajor  uint8
	VersionMinor  uint8
	HostID        int32
	VersionNumber int32
	Role          uint32
	Port          uint16
	ComputerName  string
}
