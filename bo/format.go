package bo

// Four-cc pixel format codes understood by the display hardware.
const (
	FormatXRGB8888 uint32 = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
	FormatARGB8888 uint32 = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
	FormatRGB565   uint32 = 'R' | 'G'<<8 | '1'<<16 | '6'<<24
)

// FormatString renders a four-cc code as its ASCII name.
func FormatString(format uint32) string {
	if format == 0 {
		return "none"
	}
	return string([]byte{
		byte(format),
		byte(format >> 8),
		byte(format >> 16),
		byte(format >> 24),
	})
}
