// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "state", "history.db"), 10)
	require.NoError(t, err)
	defer s.Close()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, Entry{Time: at, CycleID: "c1", Output: "DP-1", Trigger: "daytime", Image: "/day.png", FillMode: "fill", Result: ResultApplied, DurationMS: 12}))
	require.NoError(t, s.Record(ctx, Entry{CycleID: "c1", Output: "DP-2", Trigger: "static", Image: "/bg.png", FillMode: "tile", Result: ResultFailed, Error: "swaybg exited"}))

	entries, err := s.Recent(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "DP-2", entries[0].Output, "newest first")
	assert.Equal(t, "swaybg exited", entries[0].Error)
	assert.False(t, entries[0].Time.IsZero())

	assert.Equal(t, "DP-1", entries[1].Output)
	assert.True(t, at.Equal(entries[1].Time))
	assert.Equal(t, int64(12), entries[1].DurationMS)

	only, err := s.Recent(ctx, 0, "DP-1")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "/day.png", only[0].Image)
}

func TestStore_Prunes(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:", 3)
	require.NoError(t, err)
	defer s.Close()

	for i := range 5 {
		require.NoError(t, s.Record(ctx, Entry{
			CycleID: fmt.Sprintf("c%d", i),
			Output:  "DP-1",
			Trigger: "static",
			Image:   "/a.png",
			Result:  ResultApplied,
		}))
	}

	entries, err := s.Recent(ctx, 100, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c4", entries[0].CycleID)
	assert.Equal(t, "c2", entries[2].CycleID)

	two, err := s.Recent(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestStore_ReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(ctx, path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Entry{CycleID: "c1", Output: "DP-1", Trigger: "weather", Image: "/rain.png", Result: ResultApplied}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, 0)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "weather", entries[0].Trigger)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "", 0)
	assert.Error(t, err)
}
