package cln

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/niftynei/glightning/glightning"
	"github.com/niftynei/glightning/jrpc2"
)

// Options the plugin registers with lightningd.
const (
	OptionBreezDir = "breez-dir"
	OptionMnemonic = "breez-mnemonic"
)

// hookCustomMsg is the lightningd hook called for every custom message a
// peer sends.
const hookCustomMsg = "custommsg"

// CustomMessageHandler consumes raw custom messages. *Node implements it.
type CustomMessageHandler interface {
	HandleCustomMessage(peerID, payloadHex string) error
}

// A compile-time assertion that Node handles custom messages.
var _ CustomMessageHandler = (*Node)(nil)

// PluginInit is what lightningd tells the plugin on init.
type PluginInit struct {
	// Options holds the values of the plugin options that were set.
	Options map[string]string

	LightningDir string
	RPCFile      string

	// Network is the network name as lightningd reports it.
	Network string
}

// RPCPath returns the path of the lightning-rpc socket.
func (i *PluginInit) RPCPath() string {
	return filepath.Join(i.LightningDir, i.RPCFile)
}

// WalletNetwork returns the network in the naming of the wallet config.
func (i *PluginInit) WalletNetwork() string {
	if i.Network == "bitcoin" {
		return "mainnet"
	}

	return i.Network
}

// Plugin speaks lightningd's plugin protocol on the plugin's stdin and
// stdout. It subscribes to the custommsg hook and hands every message to the
// attached handler, which feeds the node's custom message streams.
type Plugin struct {
	server *jrpc2.Server

	initOnce    sync.Once
	initialized chan *PluginInit

	mu      sync.Mutex
	handler CustomMessageHandler
}

// NewPlugin returns a plugin that isn't started yet.
func NewPlugin() *Plugin {
	return &Plugin{
		server:      jrpc2.NewServer(),
		initialized: make(chan *PluginInit, 1),
	}
}

// Start serves lightningd's requests until in is closed.
func (p *Plugin) Start(in, out *os.File) error {
	methods := []jrpc2.ServerMethod{
		&getManifestMethod{plugin: p},
		&initMethod{plugin: p},
		&customMsgMethod{plugin: p},
	}
	for _, method := range methods {
		if err := p.server.Register(method); err != nil {
			return fmt.Errorf("register %v: %w", method.Name(), err)
		}
	}

	return p.server.StartUp(in, out)
}

// Stop stops sending responses. Call it after Start returned.
func (p *Plugin) Stop() {
	p.server.Shutdown()
}

// Initialized delivers the init parameters once lightningd sent them.
func (p *Plugin) Initialized() <-chan *PluginInit {
	return p.initialized
}

// Attach makes handler the receiver of custom messages. Messages arriving
// before a handler is attached are dropped.
func (p *Plugin) Attach(handler CustomMessageHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handler = handler
}

func (p *Plugin) customMessage(peerID, payload string) {
	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()

	if handler == nil {
		log.Debugf("Dropping custom message from %v, no node attached",
			peerID)
		return
	}

	if err := handler.HandleCustomMessage(peerID, payload); err != nil {
		log.Warnf("Custom message from %v: %v", peerID, err)
	}
}

type manifestOption struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

type manifestHook struct {
	Name string `json:"name"`
}

type pluginManifest struct {
	Options    []manifestOption `json:"options"`
	RPCMethods []interface{}    `json:"rpcmethods"`
	Hooks      []manifestHook   `json:"hooks"`
	Dynamic    bool             `json:"dynamic"`
}

type getManifestMethod struct {
	plugin *Plugin
}

func (m *getManifestMethod) Name() string {
	return "getmanifest"
}

func (m *getManifestMethod) New() interface{} {
	return &getManifestMethod{plugin: m.plugin}
}

func (m *getManifestMethod) Call() (jrpc2.Result, error) {
	return &pluginManifest{
		Options: []manifestOption{
			{
				Name:        OptionBreezDir,
				Type:        "string",
				Description: "The directory for all of breez's data",
			},
			{
				Name:        OptionMnemonic,
				Type:        "string",
				Description: "Mnemonic of the node's wallet seed",
			},
		},
		RPCMethods: []interface{}{},
		Hooks:      []manifestHook{{Name: hookCustomMsg}},
	}, nil
}

type initMethod struct {
	Options       json.RawMessage `json:"options"`
	Configuration json.RawMessage `json:"configuration"`

	plugin *Plugin
}

func (m *initMethod) Name() string {
	return "init"
}

func (m *initMethod) New() interface{} {
	return &initMethod{plugin: m.plugin}
}

func (m *initMethod) Call() (jrpc2.Result, error) {
	var conf glightning.Config
	if err := json.Unmarshal(m.Configuration, &conf); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	params := &PluginInit{
		Options:      make(map[string]string),
		LightningDir: conf.LightningDir,
		RPCFile:      conf.RpcFile,
		Network:      conf.Network,
	}

	if len(m.Options) > 0 {
		var opts map[string]interface{}
		if err := json.Unmarshal(m.Options, &opts); err != nil {
			return nil, fmt.Errorf("invalid options: %w", err)
		}
		for name, value := range opts {
			if value == nil {
				continue
			}
			params.Options[name] = fmt.Sprint(value)
		}
	}

	m.plugin.initOnce.Do(func() {
		m.plugin.initialized <- params
	})

	return map[string]interface{}{}, nil
}

type hookResult struct {
	Result string `json:"result"`
}

type customMsgMethod struct {
	PeerID  string `json:"peer_id"`
	Payload string `json:"payload"`

	plugin *Plugin
}

func (m *customMsgMethod) Name() string {
	return hookCustomMsg
}

func (m *customMsgMethod) New() interface{} {
	return &customMsgMethod{plugin: m.plugin}
}

// Call never fails the hook, lightningd would otherwise drop the peer
// connection.
func (m *customMsgMethod) Call() (jrpc2.Result, error) {
	m.plugin.customMessage(m.PeerID, m.Payload)

	return &hookResult{Result: "continue"}, nil
}
