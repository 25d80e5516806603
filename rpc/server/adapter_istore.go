package server

import (
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/frame"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(cmd common.Command, store store.IStore) frame.Frame {
	// Check for nil store
	if store == nil {
		return common.ReplyStoreUnavailable
	}

	// Handle different command types
	switch cmd.CmdType {
	case common.CmdTPing:
		return common.ReplyPong
	case common.CmdTSet:
		if err := store.Set(cmd.Key, cmd.Value); err != nil {
			Logger.Errorf("SET %q failed: %v", cmd.Key, err)
			return common.ReplyStoreUnavailable
		}
		return common.ReplyOK
	case common.CmdTGet:
		val, ok, err := store.Get(cmd.Key)
		if err != nil {
			Logger.Errorf("GET %q failed: %v", cmd.Key, err)
			return common.ReplyStoreUnavailable
		}
		if !ok {
			return frame.Null()
		}
		return frame.Bulk(val)
	default:
		return common.ReplyInvalidCommand
	}
}
