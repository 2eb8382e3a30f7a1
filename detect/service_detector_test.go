package detect

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ynotnauk/go-irc/interfaces"
	"github.com/ynotnauk/go-irc/parser"
)

var _ interfaces.ServiceDetector = (*Cache)(nil)

func observe(t *testing.T, cache *Cache, network string, raw string) {
	t.Helper()
	message, err := parser.ParseRawIrcMessage(raw)
	require.NoError(t, err)
	cache.Observe(network, message)
}

func TestCacheFingerprint(t *testing.T) {
	cache := NewCache()
	observe(t, cache, "libera", ":tantalum.libera.chat 004 tester tantalum.libera.chat solanum-1.0 DGIMQRSZaghilopsuwz")
	observe(t, cache, "libera", ":tantalum.libera.chat 005 tester NETWORK=Libera.Chat CHANTYPES=# CASEMAPPING=rfc1459 :are supported by this server")
	observe(t, cache, "libera", ":tantalum.libera.chat 005 tester -CASEMAPPING EXCEPTS :are supported by this server")
	observe(t, cache, "libera", ":NickServ!NickServ@services.libera.chat NOTICE tester :This nickname is registered")
	observe(t, cache, "libera", ":ChanServ!ChanServ@services.libera.chat NOTICE tester :[#go] welcome")
	observe(t, cache, "libera", ":nickserv!NickServ@services.libera.chat NOTICE tester :again")
	observe(t, cache, "libera", ":alice!a@host PRIVMSG tester :hello")

	got, ok := cache.Lookup("libera")
	require.True(t, ok)
	want := &Fingerprint{
		Network:       "libera",
		NetworkName:   "Libera.Chat",
		ServerName:    "tantalum.libera.chat",
		ServerVersion: "solanum-1.0",
		ISupport:      map[string]string{"NETWORK": "Libera.Chat", "CHANTYPES": "#", "EXCEPTS": ""},
		Services:      []string{"ChanServ", "NickServ"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fingerprint mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.HasService("nickserv"))
	assert.False(t, got.HasService("MemoServ"))
}

func TestCacheLookupReturnsCopy(t *testing.T) {
	cache := NewCache()
	observe(t, cache, "net", ":irc.example 005 tester NETWORK=Example :are supported by this server")
	got, ok := cache.Lookup("net")
	require.True(t, ok)
	got.ISupport["NETWORK"] = "changed"

	again, _ := cache.Lookup("net")
	assert.Equal(t, "Example", again.ISupport["NETWORK"])
}

func TestCacheClear(t *testing.T) {
	cache := NewCache()
	observe(t, cache, "a", ":NickServ!s@services PRIVMSG tester :hi")
	observe(t, cache, "b", ":NickServ!s@services PRIVMSG tester :hi")
	cache.ClearCache("a")

	_, ok := cache.Lookup("a")
	assert.False(t, ok)
	_, ok = cache.Lookup("b")
	assert.True(t, ok)
}

func TestCacheIgnoresIncompleteInput(t *testing.T) {
	cache := NewCache()
	cache.Observe("", nil)
	cache.Observe("net", nil)
	observe(t, cache, "net", ":irc.example 005 tester")
	observe(t, cache, "net", "PING :token")
	_, ok := cache.Lookup("net")
	assert.False(t, ok)
}
