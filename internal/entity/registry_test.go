package entity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/comfortclick-bridge/internal/devices"
)

func testDevices() *devices.Config {
	vent := testVent
	return &devices.Config{
		Fans:        []devices.FanConfig{{Name: "Fan", LockID: "fan_lock", FanID: "fan_speed"}},
		Thermostats: []devices.ThermostatConfig{{Name: "Room", HeatingID: "heat", TargetTemperatureID: "tgt", MinTemp: 18, MaxTemp: 24}},
		Locks:       []devices.LockConfig{{DoorName: "Door", DoorID: "door"}},
		Utilities:   []devices.UtilityConfig{{ID: "meter", Name: "Water"}},
		Vent:        &vent,
	}
}

func TestBuild_OrderAndLookup(t *testing.T) {
	reg, err := Build(testDevices(), testDeps(newFakeStore(nil), nil))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var ids []string
	for _, e := range reg.All() {
		ids = append(ids, e.UniqueID())
	}
	want := "fan_speed,room-1-heat,door,meter," + VentModeSelectID + "," + VentTempSelectID + "," + VentTempSensorID
	if got := strings.Join(ids, ","); got != want {
		t.Errorf("order = %s\nwant    %s", got, want)
	}
	if reg.Len() != 7 {
		t.Errorf("Len() = %d, want 7", reg.Len())
	}

	e, ok := reg.Get("door")
	if !ok || e.Kind() != KindLock || e.Name() != "Door" {
		t.Errorf("Get(door) = %v, %v", e, ok)
	}
	if _, ok := reg.Get("nope"); ok {
		t.Error("Get(nope) found something")
	}
}

func TestBuild_NoVent(t *testing.T) {
	cfg := testDevices()
	cfg.Vent = nil
	reg, err := Build(cfg, testDeps(newFakeStore(nil), nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Get(VentModeSelectID); ok {
		t.Error("vent entities built without vent config")
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	cfg := testDevices()
	cfg.Locks = append(cfg.Locks, devices.LockConfig{DoorID: "door"})
	if _, err := Build(cfg, testDeps(newFakeStore(nil), nil)); err == nil {
		t.Error("Build() accepted duplicate unique ids")
	}
}

func TestRegistry_HandleUpdateAndStates(t *testing.T) {
	store := newFakeStore(map[string]any{"door": true, "meter": 12.0, "home": true, "home_temp": 18.0})
	sink := &recordingSink{}
	reg, err := Build(testDevices(), testDeps(store, sink))
	if err != nil {
		t.Fatal(err)
	}

	reg.HandleUpdate()
	if sink.count() != 7 {
		t.Errorf("first pass emitted %d states, want 7", sink.count())
	}
	reg.HandleUpdate()
	if sink.count() != 7 {
		t.Errorf("idempotent pass emitted %d extra states", sink.count()-7)
	}

	states := reg.States()
	if states[2].EntityID != "door" || states[2].Value != LockOpen {
		t.Errorf("door state = %+v", states[2])
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	store := newFakeStore(nil)
	reg, err := Build(testDevices(), testDeps(store, nil))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := reg.Dispatch(ctx, "room-1-heat", Command{Name: CommandSetTemperature, Value: 21.0}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if w := store.writes[0]; w.EntityID != "room-1-heat" || w.Name != "tgt" {
		t.Errorf("write = %+v; entity id must travel in the context", w)
	}

	if err := reg.Dispatch(ctx, "missing", Command{Name: CommandTurnOn}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing entity error = %v", err)
	}
	if err := reg.Dispatch(ctx, "meter", Command{Name: CommandTurnOn}); !errors.Is(err, ErrUnsupportedCommand) {
		t.Errorf("read-only entity error = %v", err)
	}
}
