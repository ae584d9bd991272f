// 快速开始
//
// 创建客户端：
//
//	client := doubaospeech.NewClient("your_app_id",
//	    doubaospeech.WithV2APIKey(accessKey, appKey),
//	)
//
// 流式语音合成：
//
//	for chunk, err := range client.TTSV2.Stream(ctx, req) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // 处理 chunk.Audio
//	}
//
// 异步文件语音识别：
//
//	result, err := client.ASRV2.SubmitAsync(ctx, req)
//	status, err := client.ASRV2.QueryAsync(ctx, result.TaskID)
//
// # 错误处理
//
// 所有方法返回的错误都可以转换为 *Error 类型：
//
//	if err != nil {
//	    if e, ok := doubaospeech.AsError(err); ok {
//	        if e.IsRateLimit() {
//	            // 处理限流
//	        }
//	    }
//	}
package doubaospeech
