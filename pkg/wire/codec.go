package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// PeekTag returns the message tag of a datagram without decoding the rest.
// It is the dispatch aid for receive loops: route first, decode second.
func PeekTag(data []byte) (Tag, error) {
	if len(data) < headerLen {
		return "", fmt.Errorf("%w: %d bytes, need at least %d", ErrBadLength, len(data), headerLen)
	}
	tag := Tag(data[:4])
	switch tag {
	case TagRREF, TagDREF, TagCMND, TagVEHS, TagRPOS, TagBECN:
		return tag, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTag, data[:4])
}

// putHeader writes the 4-byte tag and the pad byte.
func putHeader(dst []byte, tag Tag) {
	copy(dst[:4], tag)
	dst[4] = 0
}

// checkHeader validates the tag and, when want is non-zero, the exact
// datagram length.
func checkHeader(data []byte, tag Tag, want int) error {
	got, err := PeekTag(data)
	if err != nil {
		return err
	}
	if got != tag {
		return fmt.Errorf("%w: got %q, want %q", ErrUnknownTag, got, tag)
	}
	if want != 0 && len(data) != want {
		return fmt.Errorf("%w: %s datagram is %d bytes, want %d", ErrBadLength, tag, len(data), want)
	}
	return nil
}

// putName null-pads name into the fixed-width field. The name must fit
// together with its terminator; oversized names are a caller error, never
// truncated on the wire.
func putName(dst []byte, name string) error {
	if len(name)+1 > len(dst) {
		return fmt.Errorf("%w: %d bytes, field is %d", ErrNameTooLong, len(name), len(dst))
	}
	copy(dst, name)
	for i := len(name); i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// nameAt extracts a null-terminated name from a fixed-width field.
func nameAt(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}
	return string(src)
}

// EncodeSubscribeRequest encodes an RREF subscription request.
func EncodeSubscribeRequest(req *SubscribeRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, subscribeRequestLen)
	putHeader(buf, TagRREF)
	binary.LittleEndian.PutUint32(buf[5:], uint32(req.FrequencyHz))
	binary.LittleEndian.PutUint32(buf[9:], uint32(req.SlotID))
	if err := putName(buf[13:], req.Name); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeSubscribeRequest decodes an RREF subscription request.
func DecodeSubscribeRequest(data []byte) (*SubscribeRequest, error) {
	if err := checkHeader(data, TagRREF, subscribeRequestLen); err != nil {
		return nil, err
	}
	return &SubscribeRequest{
		FrequencyHz: int32(binary.LittleEndian.Uint32(data[5:])),
		SlotID:      int32(binary.LittleEndian.Uint32(data[9:])),
		Name:        nameAt(data[13:]),
	}, nil
}

// EncodeUpdateReply encodes an RREF update reply. Host-emitted in normal
// operation; the encoder exists for tests and host tooling.
func EncodeUpdateReply(reply *UpdateReply) ([]byte, error) {
	if len(reply.Records) == 0 {
		return nil, fmt.Errorf("%w: update reply with no records", ErrBadLength)
	}
	buf := make([]byte, headerLen+len(reply.Records)*updateRecordLen)
	putHeader(buf, TagRREF)
	off := headerLen
	for _, rec := range reply.Records {
		binary.LittleEndian.PutUint32(buf[off:], uint32(rec.SlotID))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(rec.Value))
		off += updateRecordLen
	}
	return buf, nil
}

// DecodeUpdateReply decodes an RREF update reply. The payload after the
// 5-byte header must be a positive multiple of 8; anything else is a framing
// error.
func DecodeUpdateReply(data []byte) (*UpdateReply, error) {
	if err := checkHeader(data, TagRREF, 0); err != nil {
		return nil, err
	}
	payload := len(data) - headerLen
	if payload <= 0 || payload%updateRecordLen != 0 {
		return nil, fmt.Errorf("%w: update payload of %d bytes is not a multiple of %d",
			ErrBadLength, payload, updateRecordLen)
	}
	records := make([]UpdateRecord, payload/updateRecordLen)
	for i := range records {
		off := headerLen + i*updateRecordLen
		records[i] = UpdateRecord{
			SlotID: int32(binary.LittleEndian.Uint32(data[off:])),
			Value:  math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
		}
	}
	return &UpdateReply{Records: records}, nil
}

// EncodeWriteRequest encodes a DREF write request.
func EncodeWriteRequest(req *WriteRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, writeRequestLen)
	putHeader(buf, TagDREF)
	binary.LittleEndian.PutUint32(buf[5:], math.Float32bits(req.Value))
	if err := putName(buf[9:], req.Name); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeWriteRequest decodes a DREF write request.
func DecodeWriteRequest(data []byte) (*WriteRequest, error) {
	if err := checkHeader(data, TagDREF, writeRequestLen); err != nil {
		return nil, err
	}
	return &WriteRequest{
		Value: math.Float32frombits(binary.LittleEndian.Uint32(data[5:])),
		Name:  nameAt(data[9:]),
	}, nil
}

// EncodeCommandRequest encodes a CMND command request.
func EncodeCommandRequest(req *CommandRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, commandRequestLen)
	putHeader(buf, TagCMND)
	if err := putName(buf[5:], req.Name); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeCommandRequest decodes a CMND command request.
func DecodeCommandRequest(data []byte) (*CommandRequest, error) {
	if err := checkHeader(data, TagCMND, commandRequestLen); err != nil {
		return nil, err
	}
	return &CommandRequest{Name: nameAt(data[5:])}, nil
}

// EncodePositionSet encodes a VEHS position set request.
func EncodePositionSet(req *PositionSet) ([]byte, error) {
	buf := make([]byte, positionSetLen)
	putHeader(buf, TagVEHS)
	binary.LittleEndian.PutUint32(buf[5:], uint32(req.AircraftIndex))
	binary.LittleEndian.PutUint64(buf[9:], math.Float64bits(req.Latitude))
	binary.LittleEndian.PutUint64(buf[17:], math.Float64bits(req.Longitude))
	binary.LittleEndian.PutUint64(buf[25:], math.Float64bits(req.Elevation))
	binary.LittleEndian.PutUint32(buf[33:], math.Float32bits(req.TrueHeading))
	binary.LittleEndian.PutUint32(buf[37:], math.Float32bits(req.Pitch))
	binary.LittleEndian.PutUint32(buf[41:], math.Float32bits(req.Roll))
	return buf, nil
}

// DecodePositionSet decodes a VEHS position set request.
func DecodePositionSet(data []byte) (*PositionSet, error) {
	if err := checkHeader(data, TagVEHS, positionSetLen); err != nil {
		return nil, err
	}
	return &PositionSet{
		AircraftIndex: int32(binary.LittleEndian.Uint32(data[5:])),
		Latitude:      math.Float64frombits(binary.LittleEndian.Uint64(data[9:])),
		Longitude:     math.Float64frombits(binary.LittleEndian.Uint64(data[17:])),
		Elevation:     math.Float64frombits(binary.LittleEndian.Uint64(data[25:])),
		TrueHeading:   math.Float32frombits(binary.LittleEndian.Uint32(data[33:])),
		Pitch:         math.Float32frombits(binary.LittleEndian.Uint32(data[37:])),
		Roll:          math.Float32frombits(binary.LittleEndian.Uint32(data[41:])),
	}, nil
}

// EncodePositionRequest encodes an RPOS stream request. The rate travels as
// a null-padded decimal ASCII string.
func EncodePositionRequest(req *PositionRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, positionRequestLen)
	putHeader(buf, TagRPOS)
	rate := strconv.AppendInt(buf[headerLen:headerLen], int64(req.RateHz), 10)
	if len(rate) > rateFieldLen {
		return nil, fmt.Errorf("%w: %d does not fit %d decimal bytes", ErrBadRate, req.RateHz, rateFieldLen)
	}
	return buf, nil
}

// DecodePositionRequest decodes an RPOS stream request.
func DecodePositionRequest(data []byte) (*PositionRequest, error) {
	if err := checkHeader(data, TagRPOS, positionRequestLen); err != nil {
		return nil, err
	}
	rate, err := strconv.Atoi(nameAt(data[headerLen:]))
	if err != nil {
		return nil, fmt.Errorf("%w: rate field %q is not decimal", ErrBadRate, nameAt(data[headerLen:]))
	}
	return &PositionRequest{RateHz: int32(rate)}, nil
}

// EncodePositionReply encodes an RPOS position reply. Host-emitted in normal
// operation; the encoder exists for tests and host tooling.
func EncodePositionReply(reply *PositionReply) ([]byte, error) {
	buf := make([]byte, positionReplyLen)
	putHeader(buf, TagRPOS)
	binary.LittleEndian.PutUint64(buf[5:], math.Float64bits(reply.Longitude))
	binary.LittleEndian.PutUint64(buf[13:], math.Float64bits(reply.Latitude))
	binary.LittleEndian.PutUint64(buf[21:], math.Float64bits(reply.Elevation))
	for i, v := range reply.floats() {
		binary.LittleEndian.PutUint32(buf[29+4*i:], math.Float32bits(v))
	}
	return buf, nil
}

// DecodePositionReply decodes an RPOS position reply.
func DecodePositionReply(data []byte) (*PositionReply, error) {
	if err := checkHeader(data, TagRPOS, positionReplyLen); err != nil {
		return nil, err
	}
	reply := &PositionReply{
		Longitude: math.Float64frombits(binary.LittleEndian.Uint64(data[5:])),
		Latitude:  math.Float64frombits(binary.LittleEndian.Uint64(data[13:])),
		Elevation: math.Float64frombits(binary.LittleEndian.Uint64(data[21:])),
	}
	var f [10]float32
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[29+4*i:]))
	}
	reply.HeightAGL, reply.Pitch, reply.Heading, reply.Roll = f[0], f[1], f[2], f[3]
	reply.VX, reply.VY, reply.VZ = f[4], f[5], f[6]
	reply.RollRate, reply.PitchRate, reply.YawRate = f[7], f[8], f[9]
	return reply, nil
}

// floats returns the ten single-precision fields in wire order.
func (r *PositionReply) floats() [10]float32 {
	return [10]float32{
		r.HeightAGL, r.Pitch, r.Heading, r.Roll,
		r.VX, r.VY, r.VZ,
		r.RollRate, r.PitchRate, r.YawRate,
	}
}

// EncodeBeacon encodes a BECN discovery beacon. Host-emitted in normal
// operation; the encoder exists for tests.
func EncodeBeacon(b *Beacon) ([]byte, error) {
	buf := make([]byte, beaconMinLen+len(b.ComputerName)+1)
	putHeader(buf, TagBECN)
	buf[5] = b.VersionMajor
	buf[6] = b.VersionMinor
	binary.LittleEndian.PutUint32(buf[7:], uint32(b.HostID))
	binary.LittleEndian.PutUint32(buf[11:], uint32(b.VersionNumber))
	binary.LittleEndian.PutUint32(buf[15:], b.Role)
	binary.LittleEndian.PutUint16(buf[19:], b.Port)
	copy(buf[21:], b.ComputerName)
	return buf, nil
}

// DecodeBeacon decodes a BECN discovery beacon. The computer name is the
// null-terminated remainder; hosts pad it to varying widths.
func DecodeBeacon(data []byte) (*Beacon, error) {
	if err := checkHeader(data, TagBECN, 0); err != nil {
		return nil, err
	}
	if len(data) < beaconMinLen {
		return nil, fmt.Errorf("%w: beacon is %d bytes, need at least %d", ErrBadLength, len(data), beaconMinLen)
	}
	return &Beacon{
		VersionMajor:  data[5],
		VersionMinor:  data[6],
		HostID:        int32(binary.LittleEndian.Uint32(data[7:])),
		VersionNumber: int32(binary.LittleEndian.Uint32(data[11:])),
		Role:          binary.LittleEndian.Uint32(data[15:]),
		Port:          binary.LittleEndian.Uint16(data[19:]),
		ComputerName:  nameAt(data[21:]),
	}, nil
}
