package repository

import "errors"

// ErrShortCodeTaken は短縮コードの一意制約違反を表す。
// 呼び出し側は別コードを生成してリトライできる。
var ErrShortCodeTaken = errors.New("short code already taken")
