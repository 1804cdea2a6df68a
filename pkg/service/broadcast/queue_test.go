// Copyright 2025 Ewout Prangsma
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
//
// Author Ewout Prangsma
//

package broadcast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueConnection(t *testing.T) {
	c := NewQueueConnection("ws", 2)
	assert.True(t, strings.HasPrefix(c.ID(), "ws:"))

	assert.NoError(t, c.Send("a"))
	assert.NoError(t, c.Send("b"))
	assert.True(t, IsConnectionGone(c.Send("c")))
	assert.Equal(t, "a", <-c.Messages())

	c.Close()
	c.Close()
	assert.True(t, IsConnectionGone(c.Send("d")))
	// Queued messages are still delivered
	assert.Equal(t, "b", <-c.Messages())
	_, ok := <-c.Messages()
	assert.False(t, ok)
}
