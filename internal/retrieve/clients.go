package retrieve

import (
	"github.com/docloom/docloom/types"
)

// Requester sends one request/reply pair over the bus.
type Requester interface {
	Request(req, reply any) error
}

// OracleClient asks the watcher's authorization channel for a user's
// allow-list.
type OracleClient struct {
	req Requester
}

func NewOracleClient(req Requester) *OracleClient {
	return &OracleClient{req: req}
}

func (c *OracleClient) Authorized(userID string) ([]string, error) {
	var reply types.AccessReply
	if err := c.req.Request(types.AccessRequest{UserID: userID}, &reply); err != nil {
		return nil, types.E(types.TransportError, "query authorization oracle", err)
	}
	if reply.Status != types.StatusSuccess {
		return nil, types.E(types.AuthDenied, reply.Error, nil)
	}
	return reply.PathList, nil
}

// FetchClient asks the preprocessor's text channel for a document's
// extracted content.
type FetchClient struct {
	req Requester
}

func NewFetchClient(req Requester) *FetchClient {
	return &FetchClient{req: req}
}

func (c *FetchClient) Content(relativePath string) (string, error) {
	var reply types.TextReply
	if err := c.req.Request(types.FileRequest{RelativePath: relativePath}, &reply); err != nil {
		return "", types.E(types.TransportError, "fetch extracted text", err)
	}
	if reply.Status != types.StatusSuccess {
		return "", types.E(types.NotFound, reply.Error, nil)
	}
	return reply.Content, nil
}
