// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/decsum/pkg/common/moerr"
	"github.com/matrixorigin/decsum/pkg/config"
)

func testConfig(t *testing.T, workers int) *config.Config {
	cfg, err := config.ParseConfig(fmt.Sprintf("[sum]\nworkers = %d\nchunk-size = 4\n", workers))
	require.NoError(t, err)
	return cfg
}

func TestRun(t *testing.T) {
	input := `# group,value
b,1.25
a,-3
b,2.755
a,0.5
c,0
`
	var out bytes.Buffer
	err := run(context.Background(), testConfig(t, 2), runOptions{scale: 2, precision: 38}, strings.NewReader(input), &out)
	require.NoError(t, err)
	require.Equal(t, "a,-2.50\nb,4.01\nc,0.00\n", out.String())
}

func TestRun_Compact(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 3*batchRows+7; i++ {
		fmt.Fprintf(&sb, "g%d,1.5\n", i%3)
	}
	var out bytes.Buffer
	err := run(context.Background(), testConfig(t, 3), runOptions{scale: 1, precision: 10}, strings.NewReader(sb.String()), &out)
	require.NoError(t, err)
	// g0 holds 8192+3, g1 and g2 hold 8192+2 rows.
	require.Equal(t, "g0,12292.5\ng1,12291.0\ng2,12291.0\n", out.String())
}

func TestRun_Overflow(t *testing.T) {
	nines := strings.Repeat("9", 38)
	input := fmt.Sprintf("x,%s\nx,%s\ny,1\n", nines, nines)

	var out bytes.Buffer
	err := run(context.Background(), testConfig(t, 2), runOptions{scale: 0, precision: 38}, strings.NewReader(input), &out)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrDecimalSumOverflow))

	out.Reset()
	err = run(context.Background(), testConfig(t, 2), runOptions{scale: 0, precision: 38, exact: true}, strings.NewReader(input), &out)
	require.NoError(t, err)
	require.Equal(t, "x,1"+strings.Repeat("9", 37)+"8\ny,1\n", out.String())
}

func TestRun_BadInput(t *testing.T) {
	cfg := testConfig(t, 1)
	cases := []struct {
		name  string
		input string
		opts  runOptions
	}{
		{"fields", "a,1,2\n", runOptions{scale: 2, precision: 38}},
		{"value", "a,abc\n", runOptions{scale: 2, precision: 38}},
		{"precision", "a,123\n", runOptions{scale: 0, precision: 2}},
		{"bad precision", "a,1\n", runOptions{scale: 0, precision: 39}},
		{"bad scale", "a,1\n", runOptions{scale: 5, precision: 4}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), cfg, c.opts, strings.NewReader(c.input), &out)
			require.Error(t, err)
			require.Empty(t, out.String())
		})
	}
}

func TestGroupDict(t *testing.T) {
	d := newGroupDict()
	require.Equal(t, 0, d.index("m"))
	require.Equal(t, 1, d.index("a"))
	require.Equal(t, 0, d.index("m"))
	require.Equal(t, 2, d.index("z"))
	require.Equal(t, 3, d.Len())

	var keys []string
	var idxs []int
	d.ascend(func(key string, idx int) bool {
		keys = append(keys, key)
		idxs = append(idxs, idx)
		return true
	})
	require.Equal(t, []string{"a", "m", "z"}, keys)
	require.Equal(t, []int{1, 0, 2}, idxs)
}
