package access

import (
	"encoding/json"
	"strings"

	"github.com/docloom/docloom/types"
)

// Service adapts the oracle to the authorization reply socket.
type Service struct {
	oracle *Oracle
}

func NewService(oracle *Oracle) *Service {
	return &Service{oracle: oracle}
}

// Handle answers one authorization request: {user_id} in, the user's
// allow-list out. Malformed requests get an error reply, never a dropped
// frame, so the requesting peer's socket stays usable.
func (s *Service) Handle(req []byte) any {
	var ar types.AccessRequest
	if err := json.Unmarshal(req, &ar); err != nil {
		return types.AccessReply{Status: types.StatusError, Error: "invalid access request"}
	}
	if strings.TrimSpace(ar.UserID) == "" {
		return types.AccessReply{Status: types.StatusError, Error: "user_id is required"}
	}
	return types.AccessReply{
		Status:   types.StatusSuccess,
		PathList: s.oracle.Authorized(ar.UserID),
	}
}
