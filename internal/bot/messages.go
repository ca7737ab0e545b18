package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zombor/ledger-bot/internal/ledger"
)

const (
	// rawTextPreviewLength is how much recognised text is echoed back when nothing parsed
	rawTextPreviewLength = 500

	// testPreviewLength is how much of the sample image text /test shows
	testPreviewLength = 100
)

const welcomeText = `👋 Selamat datang di Transaction Bot!

📝 Kirim foto daftar transaksi tulisan tangan Anda dan bot akan:
✅ Membaca data transaksi
✅ Menambahkan ke Google Sheet
✅ Memberikan konfirmasi

Format yang didukung:
• 1pc Nama Produk 85 86000
• 2pcs Item Description 100 200000

Kirim foto untuk memulai!

Commands:
/help - Bantuan
/status - Status bot
/test - Test OCR dengan gambar sampel`

const helpText = `🤖 Panduan Transaction Bot:

📷 Cara menggunakan:
1. Tulis daftar transaksi di kertas dengan format:
   [Jumlah] [Nama Item] [Harga Satuan] [Total]

   Contoh:
   1pc Std ballon JW 85 86000
   2pcs Std Ayana 85 170000

2. Foto daftar transaksi
3. Kirim foto ke bot ini
4. Tunggu pemrosesan (30-90 detik)
5. Terima konfirmasi dengan data yang diekstrak

💡 Tips:
• Pastikan tulisan jelas dan mudah dibaca
• Gunakan format: [qty]pc/pcs [nama] [harga] [total]
• Sertakan tanggal di bagian atas
• Coba /test untuk test API
• Coba /status untuk status bot

❓ Ada masalah? Pastikan tulisan terbaca dengan jelas!`

const usageText = "📝 Silakan kirim foto daftar transaksi tulisan tangan untuk diproses!\n\n" +
	"Gunakan /help untuk panduan lengkap atau /test untuk test OCR API."

const processingText = "📝 Memproses daftar transaksi... Mohon tunggu 30-90 detik."

const testingText = "🧪 Testing OCR API dengan gambar sampel..."

// truncate shortens s to n characters, appending "..." when something was cut
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// maskKey shows only the first 8 characters of a secret
func maskKey(key string) string {
	if key == "" {
		return "-"
	}
	runes := []rune(key)
	if len(runes) > 8 {
		runes = runes[:8]
	}
	return string(runes) + "..."
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatRecognitionFailure(detail string) string {
	return "❌ Maaf, tidak bisa membaca tulisan.\n\n" +
		"🔍 Detail error: " + detail + "\n\n" +
		"💡 Tips:\n" +
		"• Pastikan foto jelas dan terang\n" +
		"• Tulisan tidak terlalu kecil\n" +
		"• Tidak ada bayangan pada kertas\n" +
		"• Coba /test untuk test API\n" +
		"• Coba ambil foto lagi"
}

func formatProcessingError(err error) string {
	return fmt.Sprintf("❌ Error memproses transaksi: %v", err)
}

// formatNoTransactions echoes the recognised text so the user can see what OCR read
func formatNoTransactions(rawText string) string {
	return "❌ Tidak ada transaksi yang terdeteksi.\n\n" +
		"📝 Teks yang terbaca:\n" + truncate(rawText, rawTextPreviewLength) + "\n\n" +
		"💡 Pastikan format sesuai:\n1pc Nama Item 85 86000"
}

// formatSummary renders a processed batch as a Markdown message
func formatSummary(batch *ledger.Batch, limit int) string {
	count := len(batch.Transactions)

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Berhasil memproses %d transaksi!\n\n", count)

	b.WriteString("📋 *Ringkasan Transaksi:*\n")
	for i, t := range batch.Transactions {
		if i >= limit {
			break
		}
		fmt.Fprintf(&b, "• %s %s - %s\n", escape(t.Quantity), escape(t.Description), ledger.FormatRupiah(t.TotalAmount))
	}
	if count > limit {
		fmt.Fprintf(&b, "... dan %d item lainnya\n", count-limit)
	}

	fmt.Fprintf(&b, "\n💰 *Total Keseluruhan: %s*\n", ledger.FormatRupiah(batch.Total()))
	fmt.Fprintf(&b, "📅 *Tanggal: %s*\n\n", escape(batch.Date))

	if batch.SheetSynced {
		fmt.Fprintf(&b, "✅ *%s ke Google Sheet!*", escape(batch.SheetMessage))
	} else {
		fmt.Fprintf(&b, "⚠️ *Data diproses tapi Google Sheets belum terhubung*\n%s", escape(batch.SheetMessage))
	}

	return b.String()
}

// formatStatus renders the /status reply
func formatStatus(cfg Config, sheetErr error, updated string) string {
	sheetStatus := "✅ Terhubung"
	if sheetErr != nil {
		sheetStatus = "❌ Tidak terhubung"
	}
	ocrStatus := "✅ Siap"
	if !cfg.OCRReady {
		ocrStatus = "❌ Belum dikonfigurasi"
	}

	return fmt.Sprintf(`🔍 Status Bot:
📊 Google Sheets: %s
👁️ OCR Service (%s): %s
🤖 Bot: ✅ Berjalan
🔑 API Key: %s

Update terakhir: %s

💡 Gunakan /test untuk test OCR API`, sheetStatus, cfg.ScannerName, ocrStatus, maskKey(cfg.OCRKey), updated)
}
