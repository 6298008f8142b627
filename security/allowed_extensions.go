package security

// AllowedQRExtensions are the file types the CLI writes QR codes to.
var AllowedQRExtensions = []string{".png"}

// AllowedExportExtensions are the file types job status can be exported to.
var AllowedExportExtensions = []string{".json", ".yaml", ".yml"}
