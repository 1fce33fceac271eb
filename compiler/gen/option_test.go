package gen

import (
	"go/token"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithHeader(t *testing.T) {
	t.Run("sets header", func(t *testing.T) {
		c := &Config{}
		err := WithHeader("Custom header")(c)

		require.NoError(t, err)
		assert.Equal(t, "Custom header", c.Header)
	})

	t.Run("empty header is allowed", func(t *testing.T) {
		c := &Config{Header: "existing"}
		err := WithHeader("")(c)

		require.NoError(t, err)
		assert.Equal(t, "", c.Header)
	})
}

func TestWithPackage(t *testing.T) {
	tests := []struct {
		name    string
		pkg     string
		wantErr bool
	}{
		{"import path", "github.com/acme/blog/models", false},
		{"bare name", "models", false},
		{"empty", "", true},
		{"not an identifier", "github.com/acme/blog-models", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			err := WithPackage(tt.pkg)(c)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pkg, c.Package)
		})
	}
}

func TestWithTarget(t *testing.T) {
	c := &Config{}
	require.NoError(t, WithTarget("./models")(c))
	assert.Equal(t, "./models", c.Target)
	assert.Equal(t, "models", c.Name())

	err := WithTarget("")(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestConfig_Name(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"package", Config{Package: "github.com/acme/blog/store", Target: "./001"}, "store"},
		{"target", Config{Target: "./models"}, "models"},
		{"leading digit", Config{Target: "/tmp/TestGenerate/001"}, "p001"},
		{"hyphen", Config{Target: "./my-models"}, "mymodels"},
		{"upper case", Config{Target: "./Models"}, "models"},
		{"keyword", Config{Target: "./type"}, "ptype"},
		{"nothing left", Config{Target: "./---"}, "models"},
		{"empty", Config{}, "models"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := tt.cfg.Name()
			assert.Equal(t, tt.want, name)
			assert.True(t, token.IsIdentifier(name))
		})
	}
}

func TestWithWorkers(t *testing.T) {
	c := &Config{}
	require.NoError(t, WithWorkers(3)(c))
	assert.Equal(t, 3, c.Workers)
	assert.True(t, IsConfigError(WithWorkers(0)(c)))
}

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewConfig(WithTarget("out"))
		require.NoError(t, err)
		assert.Equal(t, DefaultHeader, c.Header)
		assert.Equal(t, runtime.GOMAXPROCS(0), c.Workers)
		assert.False(t, c.OpenAPI)
		assert.Equal(t, "out", c.Name())
	})

	t.Run("openapi", func(t *testing.T) {
		c, err := NewConfig(WithTarget("out"), WithPackage("example.com/api/models"), WithOpenAPI("", ""))
		require.NoError(t, err)
		assert.True(t, c.OpenAPI)
		assert.Equal(t, "ormapi", c.Title)
		assert.Equal(t, "1.0.0", c.Version)
		assert.Equal(t, "models", c.Name())
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := NewConfig(WithPackage("models"))
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})
}

func TestApplyAll(t *testing.T) {
	c := &Config{}
	err := c.ApplyAll(WithTarget(""), WithPackage(""), WithWorkers(-1), WithHeader("ok"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Target")
	assert.Contains(t, err.Error(), "Package")
	assert.Contains(t, err.Error(), "Workers")
	assert.Equal(t, "ok", c.Header)
}
