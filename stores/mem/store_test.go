package mem_test

import (
	"testing"

	oa "github.com/panyam/credauth"
	"github.com/panyam/credauth/stores/mem"
	"github.com/panyam/credauth/stores/storetest"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) oa.AccountStore {
		return mem.New()
	})
}
