package loader

import (
	"bytes"
	"sync"
)

// Container is the render target shared by every module of one Loader.
type Container struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// WriteString appends s.
func (c *Container) WriteString(s string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.WriteString(s)
}

// Reset empties the container.
func (c *Container) Reset() {
	c.mu.Lock()
	c.buf.Reset()
	c.mu.Unlock()
}

// String returns the current contents.
func (c *Container) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Len returns the size of the contents in bytes.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}
