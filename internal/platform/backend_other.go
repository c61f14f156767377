//go:build !linux && !windows

package platform

// Open reports that no native backend exists for this platform.
func Open() (Native, error) {
	return nil, ErrUnsupported
}
