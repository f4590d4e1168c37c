package app

import (
	"os"
	"sync"
)

// InTestMode reports whether the process should skip runtime side
// effects such as opening sockets and connecting to backing stores.
// Read once; the environment does not change mid-process.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv("FAVUM_TEST_MODE") == "1"
})
