// Copyright 2025 cascade Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex(t *testing.T) {
	index := NewMapIndex()
	index.Add("b")
	index.Add("a")
	index.Add("b")
	index.Add("c")
	assert.Equal(t, int32(3), index.Len())
	assert.Equal(t, int32(0), index.ToNumber("b"))
	assert.Equal(t, int32(1), index.ToNumber("a"))
	assert.Equal(t, int32(2), index.ToNumber("c"))
	assert.Equal(t, NotId, index.ToNumber("d"))
	assert.Equal(t, "a", index.ToName(1))
	assert.Equal(t, []string{"b", "a", "c"}, index.GetNames())
}

func TestIndex_Marshal(t *testing.T) {
	index := NewMapIndex()
	index.Add("1")
	index.Add("2")
	index.Add("3")
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, index.Marshal(buf))
	decoded := new(Index)
	assert.NoError(t, decoded.Unmarshal(buf))
	assert.Equal(t, index.Names, decoded.Names)
	assert.Equal(t, index.Numbers, decoded.Numbers)
}
