package panel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhdbsbz/toolsel/internal/api"
)

type fakeAPI struct {
	mu sync.Mutex

	listTools   func() (*api.ToolsResponse, error)
	presets     []api.Preset
	presetsErr  error
	toggle      func(tool string) (bool, error)
	current     []string
	currentErr  error
	updateErr   error
	loadErr     error
	calls       []string
	updates     [][]string
	loadedNames []string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) ListTools(ctx context.Context) (*api.ToolsResponse, error) {
	f.record("tools")
	return f.listTools()
}

func (f *fakeAPI) ListPresets(ctx context.Context) ([]api.Preset, error) {
	f.record("presets")
	return f.presets, f.presetsErr
}

func (f *fakeAPI) LoadPreset(ctx context.Context, name string) error {
	f.record("presets/load")
	f.mu.Lock()
	f.loadedNames = append(f.loadedNames, name)
	f.mu.Unlock()
	return f.loadErr
}

func (f *fakeAPI) UpdateTools(ctx context.Context, tools []string) error {
	f.record("update")
	f.mu.Lock()
	f.updates = append(f.updates, tools)
	f.mu.Unlock()
	return f.updateErr
}

func (f *fakeAPI) ToggleTool(ctx context.Context, tool string) (bool, error) {
	f.record("toggle")
	return f.toggle(tool)
}

func (f *fakeAPI) CurrentTools(ctx context.Context) ([]string, error) {
	f.record("current")
	return f.current, f.currentErr
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func toolsResponse(enabled, total int, groups api.Groups) *api.ToolsResponse {
	ok := true
	return &api.ToolsResponse{
		Envelope:     api.Envelope{Success: &ok},
		Servers:      groups,
		EnabledCount: enabled,
		Total:        total,
	}
}

func sampleGroups() api.Groups {
	return api.Groups{
		{Name: "github", Tools: []api.Tool{
			{Name: "github__create_issue", Description: "Open an issue", Enabled: true},
			{Name: "github__list_prs", Enabled: false},
		}},
		{Name: "filesystem", Tools: []api.Tool{
			{Name: "filesystem__read", Description: "Read a file", Enabled: true},
		}},
	}
}

func TestClassifyBudget(t *testing.T) {
	tests := []struct {
		enabled int
		want    BudgetStatus
	}{
		{0, BudgetOK},
		{29, BudgetOK},
		{30, BudgetOK},
		{31, BudgetWarning},
		{40, BudgetWarning},
		{41, BudgetOver},
		{120, BudgetOver},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyBudget(tt.enabled), "enabled=%d", tt.enabled)
	}
	assert.Equal(t, "OK", BudgetOK.String())
	assert.Equal(t, "Warning", BudgetWarning.String())
	assert.Equal(t, "Over", BudgetOver.String())
}

func TestLoadToolsReplacesSnapshot(t *testing.T) {
	f := &fakeAPI{listTools: func() (*api.ToolsResponse, error) {
		return toolsResponse(2, 3, sampleGroups()), nil
	}}
	p := New(f)

	require.NoError(t, p.LoadTools(context.Background()))
	snap := p.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Message)
	assert.Equal(t, Stats{Enabled: 2, Total: 3}, snap.Stats)
	require.Len(t, snap.Groups, 2)
	assert.Equal(t, "github", snap.Groups[0].Name)
	assert.Equal(t, "filesystem", snap.Groups[1].Name)
}

func TestLoadToolsFailureShowsErrorAndKeepsCounts(t *testing.T) {
	fail := false
	f := &fakeAPI{listTools: func() (*api.ToolsResponse, error) {
		if fail {
			return nil, errors.New("dial tcp 127.0.0.1:8090: connection refused")
		}
		return toolsResponse(2, 3, sampleGroups()), nil
	}}
	p := New(f)
	require.NoError(t, p.LoadTools(context.Background()))

	fail = true
	err := p.LoadTools(context.Background())
	require.Error(t, err)

	snap := p.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Contains(t, snap.Message, "connection refused")
	assert.Equal(t, Stats{Enabled: 2, Total: 3}, snap.Stats)

	view := View(snap, Handlers{})
	msg := view.Find("tools-message")
	require.NotNil(t, msg)
	assert.Contains(t, msg.Label, "connection refused")
	assert.Nil(t, view.Find("group:github"))
}

func TestLoadToolsRejectedUsesServerMessage(t *testing.T) {
	f := &fakeAPI{listTools: func() (*api.ToolsResponse, error) {
		return nil, &api.Error{Message: "registry offline"}
	}}
	p := New(f)

	require.Error(t, p.LoadTools(context.Background()))
	assert.Equal(t, "Error: registry offline", p.Snapshot().Message)
}

func TestOverlappingLoadToolsLastResponseWins(t *testing.T) {
	first := api.Groups{{Name: "first", Tools: []api.Tool{{Name: "first__a", Enabled: true}}}}
	second := api.Groups{{Name: "second", Tools: []api.Tool{{Name: "second__a"}, {Name: "second__b"}}}}

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	f := &fakeAPI{listTools: func() (*api.ToolsResponse, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return toolsResponse(1, 1, first), nil
		}
		return toolsResponse(0, 2, second), nil
	}}
	p := New(f)

	firstErr := make(chan error, 1)
	go func() { firstErr <- p.LoadTools(context.Background()) }()
	<-entered

	require.NoError(t, p.LoadTools(context.Background()))
	require.Len(t, p.Snapshot().Groups, 1)
	assert.Equal(t, "second", p.Snapshot().Groups[0].Name)

	close(release)
	require.NoError(t, <-firstErr)

	snap := p.Snapshot()
	require.Len(t, snap.Groups, 1)
	assert.Equal(t, "first", snap.Groups[0].Name)
	assert.Equal(t, Stats{Enabled: 1, Total: 1}, snap.Stats)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, 2, f.callCount("tools"))
}

// A listener that blocks until a reader takes its snapshot, where the reader
// itself calls Snapshot between reads, is how the terminal UI consumes changes.
func TestBlockedListenerDoesNotStallSnapshot(t *testing.T) {
	f := &fakeAPI{listTools: func() (*api.ToolsResponse, error) {
		return toolsResponse(2, 3, sampleGroups()), nil
	}}
	p := New(f)

	events := make(chan Snapshot)
	p.Subscribe(func(s Snapshot) { events <- s })

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-events:
				p.Snapshot()
			case <-stop:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = p.LoadTools(context.Background())
		}()
		go func() {
			defer wg.Done()
			p.SelectPreset("x")
		}()
	}
	opsDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(opsDone)
	}()

	select {
	case <-opsDone:
	case <-time.After(5 * time.Second):
		t.Fatal("panel operations stalled behind a blocked listener")
	}
	close(stop)
	<-readerDone

	snap := p.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, "x", snap.SelectedPreset)
}

func TestToggleToolConvergesToServerState(t *testing.T) {
	f := &fakeAPI{
		listTools: func() (*api.ToolsResponse, error) {
			return toolsResponse(0, 1, api.Groups{
				{Name: "g", Tools: []api.Tool{{Name: "t", Enabled: false}}},
			}), nil
		},
		toggle: func(string) (bool, error) { return true, nil },
	}
	p := New(f)
	require.NoError(t, p.LoadTools(context.Background()))

	var seen []bool
	p.Subscribe(func(s Snapshot) {
		if s.Status == StatusIdle && len(s.Groups) == 1 {
			seen = append(seen, s.Groups[0].Tools[0].Enabled)
		}
	})

	require.NoError(t, p.ToggleTool(context.Background(), "t"))

	assert.Equal(t, []bool{true, false}, seen, "optimistic patch then authoritative reload")
	assert.False(t, p.Snapshot().Groups[0].Tools[0].Enabled)
	assert.Equal(t, 2, f.callCount("tools"))
}

func TestToggleToolFailureIsSilent(t *testing.T) {
	f := &fakeAPI{
		listTools: func() (*api.ToolsResponse, error) { return toolsResponse(1, 3, sampleGroups()), nil },
		toggle:    func(string) (bool, error) { return false, &api.Error{Message: "Unknown tool: x"} },
	}
	p := New(f)
	require.NoError(t, p.LoadTools(context.Background()))

	require.Error(t, p.ToggleTool(context.Background(), "x"))
	assert.Equal(t, 1, f.callCount("tools"), "no reload after a failed toggle")
	assert.Equal(t, StatusIdle, p.Snapshot().Status)
}

func TestDisableAllThenLoad(t *testing.T) {
	disabled := false
	f := &fakeAPI{listTools: func() (*api.ToolsResponse, error) {
		groups := sampleGroups()
		if disabled {
			for gi := range groups {
				for ti := range groups[gi].Tools {
					groups[gi].Tools[ti].Enabled = false
				}
			}
			return toolsResponse(0, 3, groups), nil
		}
		return toolsResponse(2, 3, groups), nil
	}}
	p := New(f)
	require.NoError(t, p.LoadTools(context.Background()))

	disabled = true
	require.NoError(t, p.DisableAll(context.Background()))

	require.Len(t, f.updates, 1)
	assert.Empty(t, f.updates[0])
	assert.NotNil(t, f.updates[0], "full replace sends an empty list, not null")

	snap := p.Snapshot()
	assert.Equal(t, 0, snap.Stats.Enabled)
	View(snap, Handlers{}).Walk(func(n *Node) bool {
		if n.Kind == KindTool {
			assert.False(t, n.Checked, n.ID)
		}
		return true
	})
}

func TestToggleGroupEnableMergesCurrentSet(t *testing.T) {
	f := &fakeAPI{
		listTools: func() (*api.ToolsResponse, error) {
			return toolsResponse(1, 3, api.Groups{
				{Name: "one", Tools: []api.Tool{{Name: "a", Enabled: true}}},
				{Name: "two", Tools: []api.Tool{{Name: "b"}, {Name: "c"}}},
			}), nil
		},
		current: []string{"a"},
	}
	p := New(f)
	require.NoError(t, p.LoadTools(context.Background()))

	require.NoError(t, p.ToggleGroup(context.Background(), "two", true))
	require.Len(t, f.updates, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, f.updates[0])
	assert.Equal(t, 2, f.callCount("tools"))
}

func TestToggleGroupDisableRemovesGroupTools(t *testing.T) {
	f := &fakeAPI{
		listTools: func() (*api.ToolsResponse, error) {
			return toolsResponse(3, 3, api.Groups{
				{Name: "one", Tools: []api.Tool{{Name: "a", Enabled: true}}},
				{Name: "two", Tools: []api.Tool{{Name: "b", Enabled: true}, {Name: "c", Enabled: true}}},
			}), nil
		},
		current: []string{"a", "b", "c"},
	}
	p := New(f)
	require.NoError(t, p.LoadTools(context.Background()))

	require.NoError(t, p.ToggleGroup(context.Background(), "two", false))
	require.Len(t, f.updates, 1)
	assert.Equal(t, []string{"a"}, f.updates[0])
}

func TestToggleGroupReadFailureSkipsWrite(t *testing.T) {
	f := &fakeAPI{
		listTools:  func() (*api.ToolsResponse, error) { return toolsResponse(0, 3, sampleGroups()), nil },
		currentErr: errors.New("boom"),
	}
	p := New(f)
	require.NoError(t, p.LoadTools(context.Background()))

	require.Error(t, p.ToggleGroup(context.Background(), "github", true))
	assert.Empty(t, f.updates)
}

func TestDeriveEnabledSet(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, DeriveEnabledSet([]string{"a", "b"}, []string{"b", "c", "c"}, true))
	assert.Equal(t, []string{"a"}, DeriveEnabledSet([]string{"a", "b", "a"}, []string{"b", "z"}, false))
	assert.Empty(t, DeriveEnabledSet(nil, nil, true))
}

func TestLoadPresetsPrependsSentinel(t *testing.T) {
	f := &fakeAPI{presets: []api.Preset{
		{Name: "development", ToolCount: 12},
		{Name: "research", ToolCount: 5},
	}}
	p := New(f)

	require.NoError(t, p.LoadPresets(context.Background()))
	snap := p.Snapshot()
	require.Len(t, snap.Presets, 3)
	assert.True(t, snap.Presets[0].IsSentinel())
	assert.Equal(t, NoPresetLabel, snap.Presets[0].Label)
	assert.Equal(t, "development (12 tools)", snap.Presets[1].Label)

	sel := RenderPresets(snap.Presets, snap.SelectedPreset, Handlers{})
	assert.True(t, sel.Children[0].Disabled)
	assert.True(t, sel.Children[0].Selected)
}

func TestApplySentinelPresetIsNoop(t *testing.T) {
	f := &fakeAPI{presets: []api.Preset{{Name: "development", ToolCount: 12}}}
	p := New(f)
	require.NoError(t, p.LoadPresets(context.Background()))

	p.SelectPreset("")
	require.NoError(t, p.ApplySelectedPreset(context.Background()))
	assert.Equal(t, 0, f.callCount("presets/load"))
	assert.Equal(t, 0, f.callCount("tools"))
}

func TestApplySelectedPresetReloads(t *testing.T) {
	f := &fakeAPI{
		listTools: func() (*api.ToolsResponse, error) { return toolsResponse(1, 3, sampleGroups()), nil },
		presets:   []api.Preset{{Name: "development", ToolCount: 12}},
	}
	p := New(f)
	require.NoError(t, p.LoadPresets(context.Background()))

	require.NoError(t, p.Dispatch(context.Background(), Action{Kind: ActionLoadPreset, Preset: "development"}))
	assert.Equal(t, []string{"development"}, f.loadedNames)
	assert.Equal(t, 1, f.callCount("tools"))
	assert.Equal(t, "development", p.Snapshot().SelectedPreset)
}

func TestLoadPresetsFailureKeepsOptions(t *testing.T) {
	f := &fakeAPI{presets: []api.Preset{{Name: "development", ToolCount: 12}}}
	p := New(f)
	require.NoError(t, p.LoadPresets(context.Background()))

	f.presets = nil
	f.presetsErr = errors.New("timeout")
	require.Error(t, p.LoadPresets(context.Background()))
	assert.Len(t, p.Snapshot().Presets, 2)
}

func TestLoadPresetsWithoutListKeepsOptions(t *testing.T) {
	f := &fakeAPI{presets: []api.Preset{{Name: "development", ToolCount: 12}}}
	p := New(f)
	require.NoError(t, p.LoadPresets(context.Background()))

	f.presets = nil
	require.NoError(t, p.LoadPresets(context.Background()))
	assert.Len(t, p.Snapshot().Presets, 2)
}

func TestRenderIsIdempotent(t *testing.T) {
	groups := sampleGroups()
	first, err := json.Marshal(Render(groups, Handlers{}))
	require.NoError(t, err)
	second, err := json.Marshal(Render(groups, Handlers{ToggleTool: func(string) {}}))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestRenderGroupSections(t *testing.T) {
	tree := Render(sampleGroups(), Handlers{})
	require.Len(t, tree.Children, 2)

	gh := tree.Children[0]
	assert.Equal(t, "github", gh.Label)
	assert.Equal(t, "1/2", gh.Detail)
	assert.Equal(t, "All", gh.Children[0].Label)
	assert.Equal(t, "None", gh.Children[1].Label)

	row := tree.Find("tool:github__list_prs")
	require.NotNil(t, row)
	assert.Equal(t, "No description", row.Detail)
	assert.False(t, row.Checked)
	assert.True(t, tree.Find("tool:github__create_issue").Checked)
}

func TestRenderBindsHandlers(t *testing.T) {
	var toggled string
	var group string
	var enable bool
	tree := Render(sampleGroups(), Handlers{
		ToggleTool:  func(tool string) { toggled = tool },
		ToggleGroup: func(g string, e bool) { group, enable = g, e },
	})

	assert.True(t, tree.Find("tool:filesystem__read").Activate())
	assert.Equal(t, "filesystem__read", toggled)

	assert.True(t, tree.Find("group:github:all").Activate())
	assert.Equal(t, "github", group)
	assert.True(t, enable)

	inert := Render(sampleGroups(), Handlers{})
	assert.False(t, inert.Find("tool:filesystem__read").Activate())
}

func TestViewStatsAndBudget(t *testing.T) {
	view := View(Snapshot{Stats: Stats{Enabled: 35, Total: 80}, Status: StatusIdle}, Handlers{})
	assert.Equal(t, "35", view.Find("enabled-count").Value)
	assert.Equal(t, "80", view.Find("total-count").Value)
	budget := view.Find("budget-status")
	assert.Equal(t, "Warning", budget.Value)
	assert.Equal(t, "stat budget-indicator warning", budget.Class)
}

func TestNewPanelStartsLoading(t *testing.T) {
	p := New(&fakeAPI{})
	snap := p.Snapshot()
	assert.Equal(t, StatusLoading, snap.Status)
	assert.Equal(t, LoadingMessage, View(snap, Handlers{}).Find("tools-message").Label)
}

func TestDispatchUnknownAction(t *testing.T) {
	p := New(&fakeAPI{})
	assert.Error(t, p.Dispatch(context.Background(), Action{Kind: "explode"}))
}
