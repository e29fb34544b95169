package keybind

import (
	"errors"
	"testing"

	"github.com/olafkfreund/comunicado-sub000/internal/store"
	"github.com/stretchr/testify/require"
)

func ctrlK() KeyCombo { return KeyCombo{Key: "K", Modifiers: ModCtrl} }

func TestResolvePrefersHigherPriority(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "default.k", ActionID: "noop", Context: Email, Key: ctrlK(), Priority: PriorityDefault, Enabled: true}))
	require.NoError(t, tbl.AddBinding(Binding{ID: "user.k", ActionID: "archive", Context: Email, Key: ctrlK(), Priority: PriorityUser, Enabled: true}))

	b, ok := tbl.Resolve(Email, ctrlK())
	require.True(t, ok)
	require.Equal(t, "archive", b.ActionID)
}

func TestResolveGlobalFallsBackWhenNoContextSpecific(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "g.k", ActionID: "help", Context: Global, Key: ctrlK(), Priority: PriorityUser, Enabled: true}))

	b, ok := tbl.Resolve(Search, ctrlK())
	require.True(t, ok)
	require.Equal(t, "help", b.ActionID)
}

func TestResolvePrefersContextSpecificOverGlobalAtSamePriority(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "g2.k", ActionID: "send", Context: Compose, Key: ctrlK(), Priority: PriorityDefault, Enabled: true}))
	require.NoError(t, tbl.AddBinding(Binding{ID: "g.k", ActionID: "help", Context: Global, Key: ctrlK(), Priority: PriorityDefault, Enabled: true}))

	b, ok := tbl.Resolve(Compose, ctrlK())
	require.True(t, ok)
	require.Equal(t, "send", b.ActionID)
}

func TestResolveNoMatchReturnsFalse(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Resolve(Email, ctrlK())
	require.False(t, ok)
}

func TestAddBindingDetectsConflict(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "a", ActionID: "archive", Context: Email, Key: ctrlK(), Priority: PriorityUser, Enabled: true}))

	err := tbl.AddBinding(Binding{ID: "b", ActionID: "delete", Context: Email, Key: ctrlK(), Priority: PriorityUser, Enabled: true})
	require.Error(t, err)
	require.True(t, store.Is(err, store.KindConflict))

	var conflict *Conflict
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, "a", conflict.Existing.ID)
	require.Equal(t, "b", conflict.New.ID)
}

func TestResolveConflictUseNew(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "a", ActionID: "archive", Context: Email, Key: ctrlK(), Priority: PriorityUser, Enabled: true}))
	err := tbl.AddBinding(Binding{ID: "b", ActionID: "delete", Context: Email, Key: ctrlK(), Priority: PriorityUser, Enabled: true})

	var conflict *Conflict
	require.True(t, errors.As(err, &conflict))
	require.NoError(t, tbl.ResolveConflict(conflict, ConflictResolutionChoice{Kind: UseNew}))

	b, ok := tbl.Resolve(Email, ctrlK())
	require.True(t, ok)
	require.Equal(t, "delete", b.ActionID)
}

func TestBindingConflictScenario(t *testing.T) {
	ctrlS := KeyCombo{Key: "S", Modifiers: ModCtrl}
	tbl := NewTable()

	require.NoError(t, tbl.AddBinding(Binding{ID: "default.save", ActionID: "save", Context: Global, Key: ctrlS, Priority: PriorityDefault, Enabled: true}))
	require.NoError(t, tbl.AddBinding(Binding{ID: "user.saveas", ActionID: "save_as", Context: Email, Key: ctrlS, Priority: PriorityUser, Enabled: true}))

	b, ok := tbl.Resolve(Email, ctrlS)
	require.True(t, ok)
	require.Equal(t, "save_as", b.ActionID)

	err := tbl.AddBinding(Binding{ID: "user.sendmail", ActionID: "send_mail", Context: Email, Key: ctrlS, Priority: PriorityUser, Enabled: true})
	require.Error(t, err)

	var conflict *Conflict
	require.True(t, errors.As(err, &conflict))
	require.NoError(t, tbl.ResolveConflict(conflict, ConflictResolutionChoice{Kind: UseNew}))

	b, ok = tbl.Resolve(Email, ctrlS)
	require.True(t, ok)
	require.Equal(t, "send_mail", b.ActionID)
}

func TestResetToDefaultsDropsUserAndPlugin(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "sys", ActionID: "quit", Context: Global, Key: ctrlK(), Priority: PrioritySystem, Enabled: true}))
	require.NoError(t, tbl.AddBinding(Binding{ID: "plugin", ActionID: "plugin-action", Context: Search, Key: KeyCombo{Key: "P"}, Priority: PriorityPlugin, Enabled: true}))
	require.NoError(t, tbl.AddBinding(Binding{ID: "user", ActionID: "archive", Context: Email, Key: KeyCombo{Key: "U"}, Priority: PriorityUser, Enabled: true}))

	tbl.ResetToDefaults()

	require.Len(t, tbl.Bindings(), 1)
	require.Equal(t, "sys", tbl.Bindings()[0].ID)
}

func TestCaptureModeConsumesNextKey(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Feed(ctrlK())
	require.False(t, ok)

	tbl.StartCapture()
	key, ok := tbl.Feed(ctrlK())
	require.True(t, ok)
	require.Equal(t, ctrlK(), key)

	_, ok = tbl.Feed(ctrlK())
	require.False(t, ok)
}

func TestExportImportJSONRoundTrip(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "user.archive", ActionID: "archive", Context: Email, Key: ctrlK(), Priority: PriorityUser, Enabled: true}))
	require.NoError(t, tbl.AddBinding(Binding{ID: "plugin.star", ActionID: "star", Context: Email, Key: KeyCombo{Key: "T"}, Priority: PriorityPlugin, Enabled: true}))
	require.NoError(t, tbl.AddBinding(Binding{ID: "sys.quit", ActionID: "quit", Context: Global, Key: KeyCombo{Key: "Q", Modifiers: ModCtrl}, Priority: PrioritySystem, Enabled: true}))

	data, err := Export(tbl, FormatJSON)
	require.NoError(t, err)
	require.Contains(t, string(data), "user.archive")
	require.Contains(t, string(data), "plugin.star")
	require.NotContains(t, string(data), "sys.quit")

	tbl2 := NewTable()
	tbl2.RegisterAction(Action{ID: "archive"})
	tbl2.RegisterAction(Action{ID: "star"})
	require.NoError(t, Import(tbl2, data, FormatJSON, true))

	b, ok := tbl2.Resolve(Email, ctrlK())
	require.True(t, ok)
	require.Equal(t, "archive", b.ActionID)

	starB, ok := tbl2.Resolve(Email, KeyCombo{Key: "T"})
	require.True(t, ok)
	require.Equal(t, "star", starB.ActionID)
	require.Equal(t, PriorityPlugin, starB.Priority)
}

func TestExportImportCSVRoundTrip(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "user.archive", ActionID: "archive", Context: Email, Key: ctrlK(), Priority: PriorityUser, Enabled: true}))

	data, err := Export(tbl, FormatCSV)
	require.NoError(t, err)

	tbl2 := NewTable()
	tbl2.RegisterAction(Action{ID: "archive"})
	require.NoError(t, Import(tbl2, data, FormatCSV, true))
	b, ok := tbl2.Resolve(Email, ctrlK())
	require.True(t, ok)
	require.Equal(t, "archive", b.ActionID)
}

func TestImportSkipsUnknownActionID(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.AddBinding(Binding{ID: "user.archive", ActionID: "archive", Context: Email, Key: ctrlK(), Priority: PriorityUser, Enabled: true}))
	require.NoError(t, tbl.AddBinding(Binding{ID: "user.ghost", ActionID: "ghost-action", Context: Email, Key: KeyCombo{Key: "G"}, Priority: PriorityUser, Enabled: true}))

	data, err := Export(tbl, FormatJSON)
	require.NoError(t, err)

	tbl2 := NewTable()
	tbl2.RegisterAction(Action{ID: "archive"})
	require.NoError(t, Import(tbl2, data, FormatJSON, true))

	_, ok := tbl2.Resolve(Email, ctrlK())
	require.True(t, ok)
	_, ok = tbl2.Resolve(Email, KeyCombo{Key: "G"})
	require.False(t, ok, "binding with unregistered action_id must be skipped on import")
}

func TestFormatForPathDetectsExtension(t *testing.T) {
	f, err := FormatForPath("bindings.toml")
	require.NoError(t, err)
	require.Equal(t, FormatTOML, f)

	_, err = FormatForPath("bindings.exe")
	require.Error(t, err)
	require.True(t, store.Is(err, store.KindMalformed))
}
