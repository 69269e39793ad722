package client

import (
	"github.com/xplane-protocol/xpc-go/pkg/wire"
)

// Datarefs driven by SendControl.
const (
	drefYokeRoll     = "sim/cockpit2/controls/yoke_roll_ratio"
	drefYokePitch    = "sim/cockpit2/controls/yoke_pitch_ratio"
	drefYokeHeading  = "sim/cockpit2/controls/yoke_heading_ratio"
	drefThrottle     = "sim/cockpit2/engine/actuators/throttle_jet_rev_ratio_all"
	drefGearHandle   = "sim/cockpit/switches/gear_handle_status"
	drefFlaps        = "sim/cockpit2/controls/flap_ratio"
	drefSpeedbrakes  = "sim/cockpit2/controls/speedbrake_ratio"
	drefParkingBrake = "sim/cockpit2/controls/parking_brake_ratio"
)

// Simulator pause commands.
const (
	cmdPauseOn  = "sim/operation/pause_on"
	cmdPauseOff = "sim/operation/pause_off"
)

// SetDataref writes a value to a writable dataref. Fire-and-forget: no
// reply is expected and delivery is not guaranteed.
func (c *Client) SetDataref(name string, value float32) error {
	data, err := wire.EncodeWriteRequest(&wire.WriteRequest{Value: value, Name: name})
	if err != nil {
		return err
	}
	return c.send(wire.TagDREF, data, nil, 0)
}

// SendCommand triggers a simulator command (operate the simulator, not the
// aircraft). Fire-and-forget.
func (c *Client) SendCommand(name string) error {
	data, err := wire.EncodeCommandRequest(&wire.CommandRequest{Name: name})
	if err != nil {
		return err
	}
	return c.send(wire.TagCMND, data, nil, 0)
}

// SetPosition places an aircraft at a global position and attitude. The
// identical datagram is sent twice: the host derives terrain elevation from
// the aircraft's pre-update location on the first application, and the
// second application corrects it.
func (c *Client) SetPosition(pos wire.PositionSet) error {
	data, err := wire.EncodePositionSet(&pos)
	if err != nil {
		return err
	}
	if err := c.send(wire.TagVEHS, data, nil, 0); err != nil {
		return err
	}
	return c.send(wire.TagVEHS, data, nil, 0)
}

// Controls are basic pilot inputs for the user aircraft. Finer-grained
// control is available by writing individual datarefs with SetDataref.
type Controls struct {
	// YokeRoll is the lateral input, -1 to 1.
	YokeRoll float32

	// YokePitch is the longitudinal input, -1 to 1.
	YokePitch float32

	// Rudder is the rudder input, -1 to 1.
	Rudder float32

	// Throttle ranges -1 (full reverse) to 1 (full forward).
	Throttle float32

	// Gear is the gear handle position: 0 up, 1 down.
	Gear float32

	// Flaps is the requested flap position, 0 to 1.
	Flaps float32

	// Speedbrakes: -0.5 armed, 0 retracted, 1 fully deployed.
	Speedbrakes float32

	// ParkingBrake is the requested brake ratio, 0 to 1.
	ParkingBrake float32
}

// SendControl writes the full set of basic pilot inputs, one dataref write
// per input. Fire-and-forget; a lost datagram drops that single input.
func (c *Client) SendControl(ctrl Controls) error {
	writes := []struct {
		name  string
		value float32
	}{
		{drefYokeRoll, ctrl.YokeRoll},
		{drefYokePitch, ctrl.YokePitch},
		{drefYokeHeading, ctrl.Rudder},
		{drefThrottle, ctrl.Throttle},
		{drefGearHandle, ctrl.Gear},
		{drefFlaps, ctrl.Flaps},
		{drefSpeedbrakes, ctrl.Speedbrakes},
		{drefParkingBrake, ctrl.ParkingBrake},
	}
	for _, w := range writes {
		if err := c.SetDataref(w.name, w.value); err != nil {
			return err
		}
	}
	return nil
}

// SetPaused pauses or unpauses the simulator.
func (c *Client) SetPaused(paused bool) error {
	if paused {
		return c.SendCommand(cmdPauseOn)
	}
	return c.SendCommand(cmdPauseOff)
}
