package plugin

import (
	"context"
	"net/rpc"
	"sync"

	"github.com/hashicorp/go-plugin"

	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// PluginName is the name connectors are dispensed under.
const PluginName = "connector"

// Handshake is shared by the host and every connector binary.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "WORKSYNC_CONNECTOR",
	MagicCookieValue: "worksync",
}

// ConnectorPlugin is the implementation of plugin.Plugin so we can serve/consume connectors.
type ConnectorPlugin struct {
	Impl Connector
}

func (p *ConnectorPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &ConnectorRPCServer{Impl: p.Impl}, nil
}

func (p *ConnectorPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &ConnectorRPCClient{Client: c}, nil
}

// RPC argument and reply types. net/rpc cannot carry a context, so calls run
// with the server's background context; callers bound them by killing the
// plugin process.
type FetchItemsArgs struct {
	Query Query
}

type FetchHistoryArgs struct {
	ID string
}

type UpdateFieldArgs struct {
	ID      string
	FieldID string
	Value   writeback.Value
}

type BoardInfoArgs struct {
	BoardID string
}

type DescribeReply struct {
	Kind         string
	ItemViewPath string
}

// ConnectorRPCClient is the host side of a plugin connection.
type ConnectorRPCClient struct {
	Client *rpc.Client

	mu        sync.Mutex
	described bool
	describe  DescribeReply
}

func (c *ConnectorRPCClient) Init(options map[string]string) error {
	var resp interface{}
	return c.Client.Call("Plugin.Init", options, &resp)
}

func (c *ConnectorRPCClient) Kind() string {
	return c.description().Kind
}

func (c *ConnectorRPCClient) ItemViewPath() string {
	return c.description().ItemViewPath
}

func (c *ConnectorRPCClient) description() DescribeReply {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.described {
		if err := c.Client.Call("Plugin.Describe", struct{}{}, &c.describe); err == nil {
			c.described = true
		}
	}
	return c.describe
}

func (c *ConnectorRPCClient) CheckAuth(_ context.Context) error {
	var resp interface{}
	return c.Client.Call("Plugin.CheckAuth", struct{}{}, &resp)
}

func (c *ConnectorRPCClient) Fields(_ context.Context) ([]RemoteField, error) {
	var resp []RemoteField
	err := c.Client.Call("Plugin.Fields", struct{}{}, &resp)
	return resp, err
}

func (c *ConnectorRPCClient) FetchItems(_ context.Context, query Query) ([]workitem.RawItem, error) {
	var resp []workitem.RawItem
	err := c.Client.Call("Plugin.FetchItems", &FetchItemsArgs{Query: query}, &resp)
	return resp, err
}

func (c *ConnectorRPCClient) FetchHistory(_ context.Context, id string) ([]workitem.StateHistoryEntry, error) {
	var resp []workitem.StateHistoryEntry
	err := c.Client.Call("Plugin.FetchHistory", &FetchHistoryArgs{ID: id}, &resp)
	return resp, err
}

func (c *ConnectorRPCClient) ValidateItemID(id string) error {
	var resp interface{}
	return c.Client.Call("Plugin.ValidateItemID", id, &resp)
}

func (c *ConnectorRPCClient) UpdateField(_ context.Context, id, fieldID string, value writeback.Value) error {
	var resp interface{}
	return c.Client.Call("Plugin.UpdateField", &UpdateFieldArgs{ID: id, FieldID: fieldID, Value: value}, &resp)
}

// Boards lists the plugin's boards. Plugins without board discovery report
// ErrBoardsNotSupported.
func (c *ConnectorRPCClient) Boards(_ context.Context) ([]Board, error) {
	var resp []Board
	err := c.Client.Call("Plugin.Boards", struct{}{}, &resp)
	return resp, remoteBoardsError(err)
}

func (c *ConnectorRPCClient) BoardInfo(_ context.Context, boardID string) (BoardInfo, error) {
	var resp BoardInfo
	err := c.Client.Call("Plugin.BoardInfo", &BoardInfoArgs{BoardID: boardID}, &resp)
	return resp, remoteBoardsError(err)
}

// remoteBoardsError restores ErrBoardsNotSupported, which net/rpc flattens
// into a string.
func remoteBoardsError(err error) error {
	if err != nil && err.Error() == ErrBoardsNotSupported.Error() {
		return ErrBoardsNotSupported
	}
	return err
}

// ConnectorRPCServer is the plugin side of a connection.
type ConnectorRPCServer struct{ Impl Connector }

func (s *ConnectorRPCServer) Init(options map[string]string, resp *interface{}) error {
	return s.Impl.Init(options)
}

func (s *ConnectorRPCServer) Describe(_ struct{}, resp *DescribeReply) error {
	*resp = DescribeReply{Kind: s.Impl.Kind(), ItemViewPath: s.Impl.ItemViewPath()}
	return nil
}

func (s *ConnectorRPCServer) CheckAuth(_ struct{}, resp *interface{}) error {
	return s.Impl.CheckAuth(context.Background())
}

func (s *ConnectorRPCServer) Fields(_ struct{}, resp *[]RemoteField) error {
	fields, err := s.Impl.Fields(context.Background())
	*resp = fields
	return err
}

func (s *ConnectorRPCServer) FetchItems(args *FetchItemsArgs, resp *[]workitem.RawItem) error {
	items, err := s.Impl.FetchItems(context.Background(), args.Query)
	*resp = items
	return err
}

func (s *ConnectorRPCServer) FetchHistory(args *FetchHistoryArgs, resp *[]workitem.StateHistoryEntry) error {
	history, err := s.Impl.FetchHistory(context.Background(), args.ID)
	*resp = history
	return err
}

func (s *ConnectorRPCServer) ValidateItemID(id string, resp *interface{}) error {
	return s.Impl.ValidateItemID(id)
}

func (s *ConnectorRPCServer) UpdateField(args *UpdateFieldArgs, resp *interface{}) error {
	return s.Impl.UpdateField(context.Background(), args.ID, args.FieldID, args.Value)
}

func (s *ConnectorRPCServer) Boards(_ struct{}, resp *[]Board) error {
	d, ok := s.Impl.(BoardDiscoverer)
	if !ok {
		return ErrBoardsNotSupported
	}
	boards, err := d.Boards(context.Background())
	*resp = boards
	return err
}

func (s *ConnectorRPCServer) BoardInfo(args *BoardInfoArgs, resp *BoardInfo) error {
	d, ok := s.Impl.(BoardDiscoverer)
	if !ok {
		return ErrBoardsNotSupported
	}
	info, err := d.BoardInfo(context.Background(), args.BoardID)
	*resp = info
	return err
}
