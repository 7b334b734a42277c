package scoring

// ButtonKeywords are action and navigation labels. Matching is a case-insensitive
// substring test, so "Settings" also matches "Account Settings".
var ButtonKeywords = []string{
	"ホーム", "メニュー", "設定", "戻る", "閉じる", "完了", "保存", "送信",
	"追加", "削除", "編集", "新規", "作成", "検索", "選択", "確認",
	"ログイン", "サインアップ", "スタート", "次へ", "OK", "キャンセル",
	"プロフィール", "マイページ", "お気に入り", "通知", "シェア",
	"Home", "Menu", "Settings", "Back", "Close", "Done", "Save", "Submit",
	"Add", "Delete", "Edit", "New", "Create", "Search", "Select", "Confirm",
	"Login", "Sign up", "Start", "Next", "Cancel",
	"Profile", "My Page", "Favorite", "Notification", "Share",
}

// TitleKeywords mark screen titles and headers
var TitleKeywords = []string{
	"タイトル", "ヘッダー", "画面", "ページ",
	"Title", "Header", "Screen", "Page",
}
